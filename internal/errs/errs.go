package errs

import (
	"errors"
	"strings"
)

// Kind categorizes a failure.
type Kind uint8

const (
	KindNone Kind = iota
	KindResolution
	KindNoTransform
	KindTransform
	KindEngineCompile
	KindEngineEval
	KindEngineCall
	KindBufferOverflow
	KindInvalidUTF8
	KindInvalidHandle
	KindInvalidInput
	KindInternal
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrResolution     = errors.New("resolution error")
	ErrNoTransform    = errors.New("no transform found")
	ErrTransform      = errors.New("transform error")
	ErrEngineCompile  = errors.New("engine compile error")
	ErrEngineEval     = errors.New("engine eval error")
	ErrEngineCall     = errors.New("engine call error")
	ErrBufferOverflow = errors.New("buffer overflow")
	ErrInvalidUTF8    = errors.New("invalid utf-8")
	ErrInvalidHandle  = errors.New("invalid handle")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindResolution:     ErrResolution,
	KindNoTransform:    ErrNoTransform,
	KindTransform:      ErrTransform,
	KindEngineCompile:  ErrEngineCompile,
	KindEngineEval:     ErrEngineEval,
	KindEngineCall:     ErrEngineCall,
	KindBufferOverflow: ErrBufferOverflow,
	KindInvalidUTF8:    ErrInvalidUTF8,
	KindInvalidHandle:  ErrInvalidHandle,
	KindInvalidInput:   ErrInvalidInput,
	KindInternal:       ErrInternal,
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindResolution:
		return "resolution"
	case KindNoTransform:
		return "no_transform"
	case KindTransform:
		return "transform"
	case KindEngineCompile:
		return "engine_compile"
	case KindEngineEval:
		return "engine_eval"
	case KindEngineCall:
		return "engine_call"
	case KindBufferOverflow:
		return "buffer_overflow"
	case KindInvalidUTF8:
		return "invalid_utf8"
	case KindInvalidHandle:
		return "invalid_handle"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// Status is the code reported to the host through the status channel.
// Zero always means success.
func (k Kind) Status() uint32 {
	return uint32(k)
}

// Error is the structured error used by the module pipeline and the bridge.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	Detail string
	Cause  error
}

// New builds an error of the given kind.
func New(kind Kind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Wrap builds an error of the given kind around cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// WithPath attaches the module path the error refers to.
func (e *Error) WithPath(p string) *Error {
	e.Path = p
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(e.Kind.String())
	b.WriteByte(']')
	if e.Op != "" {
		b.WriteByte(' ')
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf reports the kind of err. Errors that carry no kind are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindInternal
}
