package sentinel

import "errors"

// Sentinel errors for infrastructure facts. State stores and registry adapters
// return these (optionally wrapped) so callers can decide whether to degrade.
//
//   - ErrNotFound: nothing is stored under the key
//   - ErrUnavailable: backend or upstream temporarily unavailable
//
// Identifier validation failures are data (identifier.ErrorKind), never errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)
