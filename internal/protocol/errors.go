package protocol

const (
	// Transport/request validation.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrBadSignature = "E_BAD_SIGNATURE"
	ErrReplay       = "E_REPLAY"

	// World state.
	ErrNotFound     = "E_NOT_FOUND"
	ErrUnknownEntry = "E_UNKNOWN_ENTRYPOINT"
	ErrExecution    = "E_EXECUTION"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:   {},
	ErrBadSignature: {},
	ErrReplay:       {},
	ErrNotFound:     {},
	ErrUnknownEntry: {},
	ErrExecution:    {},
	ErrInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
