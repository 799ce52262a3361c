// Command dittostore is a CLI over a configured content-addressable store:
// put, get, stat, rm, verify, gc and stats subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/config"
	"github.com/marmos91/dittostore/pkg/gc"
	"github.com/marmos91/dittostore/pkg/store"
)

const usage = `Usage: dittostore [flags] <command> [args]

Commands:
  put [file]          store a file (or stdin) and print its content id
  get <id>            write the content to stdout
  stat <id>           print content metadata
  rm <id>             delete a handle (and unreferenced data)
  verify <id>         recompute and check the content hash
  gc                  run a garbage collection sweep
  stats               print store statistics

Flags:
`

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	extension := flag.String("extension", "", "File extension metadata for put")
	mimeType := flag.String("mime-type", "", "MIME type metadata for put")
	dryRun := flag.Bool("dry-run", false, "For gc: report what would be deleted without deleting")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args(), *extension, *mimeType, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, extension, mimeType string, dryRun bool) error {
	command, args := args[0], args[1:]

	// The sweep works on the raw backends, not through the engine.
	if command == "gc" {
		return runGC(ctx, cfg, dryRun)
	}

	s, err := config.NewStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	switch command {
	case "put":
		return runPut(ctx, s, args, extension, mimeType)
	case "get":
		return runGet(ctx, s, args)
	case "stat":
		return runStat(ctx, s, args)
	case "rm":
		return runRm(ctx, s, args)
	case "verify":
		return runVerify(ctx, s, args)
	case "stats":
		return runStats(ctx, s)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func parseIDArg(args []string) (blob.ContentID, error) {
	if len(args) != 1 {
		return blob.ContentID{}, fmt.Errorf("expected exactly one content id argument")
	}
	return blob.ParseContentID(args[0])
}

func runPut(ctx context.Context, s *store.Store, args []string, extension, mimeType string) error {
	var in io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	result, err := s.Write(ctx, in, store.WriteOptions{
		Extension: extension,
		MimeType:  mimeType,
	})
	if err != nil {
		return err
	}

	logger.Info("Stored %d bytes in %d chunks (deduplicated=%v)",
		result.Size, result.ChunkCount, result.WasDeduplicated)
	fmt.Println(result.ID)
	return nil
}

func runGet(ctx context.Context, s *store.Store, args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}

	r, err := s.Read(ctx, id)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = io.Copy(os.Stdout, r)
	return err
}

func runStat(ctx context.Context, s *store.Store, args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}

	rec, err := s.GetMetadata(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("id:             %s\n", rec.ID)
	fmt.Printf("hash:           %s\n", rec.Hash)
	fmt.Printf("size:           %d\n", rec.Size)
	fmt.Printf("chunks:         %d\n", rec.ChunkCount)
	if rec.Extension != "" {
		fmt.Printf("extension:      %s\n", rec.Extension)
	}
	if rec.MimeType != "" {
		fmt.Printf("mime type:      %s\n", rec.MimeType)
	}
	fmt.Printf("created:        %s\n", rec.CreatedAt)
	fmt.Printf("last accessed:  %s\n", rec.LastAccessedAt)
	return nil
}

func runRm(ctx context.Context, s *store.Store, args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}

	deleted, err := s.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("content %s not found", id)
	}

	logger.Info("Deleted %s", id)
	return nil
}

func runVerify(ctx context.Context, s *store.Store, args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}

	ok, err := s.VerifyIntegrity(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("content %s FAILED integrity verification", id)
	}

	fmt.Printf("content %s verified\n", id)
	return nil
}

func runGC(ctx context.Context, cfg *config.Config, dryRun bool) error {
	chunkStore, err := config.CreateChunkStore(ctx, cfg.Chunks)
	if err != nil {
		return err
	}
	metaStore, err := config.CreateMetadataStore(ctx, cfg.Metadata)
	if err != nil {
		return err
	}
	defer metaStore.Close()

	collector := gc.NewCollector(metaStore, chunkStore, gc.Config{
		BatchSize:   cfg.GC.BatchSize,
		DryRun:      dryRun || cfg.GC.DryRun,
		GracePeriod: cfg.GC.GracePeriod,
	})

	stats, err := collector.RunNow(ctx)
	if err != nil {
		return err
	}

	fmt.Println(stats.Summary())
	return nil
}

func runStats(ctx context.Context, s *store.Store) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("contents:        %d\n", stats.ContentCount)
	fmt.Printf("distinct values: %d\n", stats.HashCount)
	fmt.Printf("chunks:          %d\n", stats.ChunkCount)
	fmt.Printf("logical bytes:   %d\n", stats.LogicalBytes)
	fmt.Printf("unique bytes:    %d\n", stats.UniqueBytes)
	fmt.Printf("physical bytes:  %d\n", stats.PhysicalBytes)
	fmt.Printf("dedup ratio:     %.2f\n", stats.DedupRatio())
	return nil
}
