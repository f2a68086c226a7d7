package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Planning.
	ErrNotFound        = "E_NOT_FOUND"
	ErrInvalidArgument = "E_INVALID_ARGUMENT"

	// Execution.
	ErrBlocked  = "E_BLOCKED"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNotFound:        {},
	ErrInvalidArgument: {},
	ErrBlocked:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
