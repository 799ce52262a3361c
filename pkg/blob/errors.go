package blob

import "errors"

// ErrInvalidID indicates an identifier could not be parsed or constructed.
//
// This error is returned when:
//   - A hex string has the wrong length for the identifier type
//   - A string contains non-hex characters
//   - A raw digest slice is not exactly 32 bytes
//
// Callers should check with errors.Is and treat it as an invalid-argument
// failure at the API boundary:
//
//	id, err := blob.ParseContentID(s)
//	if errors.Is(err, blob.ErrInvalidID) {
//	    // reject the request, do not retry
//	}
var ErrInvalidID = errors.New("invalid identifier")
