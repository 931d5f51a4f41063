package hgclient

import "fmt"

// Kind discriminates the error conditions a caller needs to branch on.
type Kind int

const (
	// InvalidRepository means path is missing or has no .hg directory.
	InvalidRepository Kind = iota
	// ServerLaunchFailed means the hg serve subprocess could not be spawned.
	ServerLaunchFailed
	// HandshakeError means the handshake frame was missing or malformed.
	HandshakeError
	// ServerClosed means EOF or a short read occurred on the server pipe.
	ServerClosed
	// ProtocolError means the frame stream violated the wire protocol.
	ProtocolError
	// CommandFailed means the exit code fell outside the command's accepted set.
	CommandFailed
	// ParseError means output (XML, version string, ...) could not be parsed.
	ParseError
	// InvalidArgument means a required argument (a revision list, a file list, ...) was empty.
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case InvalidRepository:
		return "InvalidRepository"
	case ServerLaunchFailed:
		return "ServerLaunchFailed"
	case HandshakeError:
		return "HandshakeError"
	case ServerClosed:
		return "ServerClosed"
	case ProtocolError:
		return "ProtocolError"
	case CommandFailed:
		return "CommandFailed"
	case ParseError:
		return "ParseError"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the single error type the client returns to callers. Every
// distinguishable failure carries a Kind; CommandFailed additionally
// carries the CommandResult that was captured before the exit-code
// policy rejected it.
type Error struct {
	Kind      Kind
	Message   string
	SessionID string
	Result    *CommandResult
	Err       error // wrapped cause, if any
}

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.SessionID != "" {
		prefix = fmt.Sprintf("%s[%s]", prefix, e.SessionID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func newErrorf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// commandFailedError builds the CommandFailed error variant, carrying
// the result that the exit-code policy rejected and the id of the
// session the command ran on.
func commandFailedError(sessionID string, argv []string, result CommandResult) *Error {
	return &Error{
		Kind:      CommandFailed,
		Message:   fmt.Sprintf("command %v exited %d", argv, result.ExitCode),
		SessionID: sessionID,
		Result:    &result,
	}
}
