package infra

import (
	"path"
	"runtime"
	"strconv"
	"strings"
)

// References:
// https://github.com/pkg/errors/blob/master/stack.go

const maxStackDepth = 32

type Frame uintptr

func (frame Frame) pc() uintptr {
	return uintptr(frame) - 1
}

func (frame Frame) fileAndLine() (string, int) {
	fn := runtime.FuncForPC(frame.pc())
	if fn == nil {
		return "unknownFile", 0
	}
	return fn.FileLine(frame.pc())
}

func (frame Frame) name() string {
	fn := runtime.FuncForPC(frame.pc())
	if fn == nil {
		return "unknownFunc"
	}
	return fn.Name()
}

// MarshalText renders the frame as "function file:line" for text
// encoders. fmt does not use it: "%+v" prints the numeric frame value.
func (frame Frame) MarshalText() ([]byte, error) {
	name := frame.name()
	if name == "unknownFunc" {
		return []byte("unknownFrame"), nil
	}
	f, l := frame.fileAndLine()
	builder := strings.Builder{}
	_, _ = builder.WriteString(name)
	_, _ = builder.WriteString(" ")
	_, _ = builder.WriteString(f)
	_, _ = builder.WriteString(":")
	_, _ = builder.WriteString(strconv.Itoa(l))
	return []byte(builder.String()), nil
}

func (frame Frame) MarshalJSON() ([]byte, error) {
	name := frame.name()
	if name == "unknownFunc" {
		return []byte("{\"frame\":\"unknownFrame\"}"), nil
	}
	f, l := frame.fileAndLine()
	builder := strings.Builder{}
	_, _ = builder.WriteString("{\"func\":\"")
	_, _ = builder.WriteString(funcName(name))
	_, _ = builder.WriteString("\",\"fileAndLine\":\"")
	_, _ = builder.WriteString(path.Base(f))
	_, _ = builder.WriteString(":")
	_, _ = builder.WriteString(strconv.Itoa(l))
	_, _ = builder.WriteString("\"}")
	return []byte(builder.String()), nil
}

func funcName(name string) string {
	i := strings.LastIndex(name, "/")
	name = name[i+1:]
	i = strings.Index(name, ".")
	return name[i+1:]
}

type errorStack struct {
	cause  error
	msg    string
	frames []Frame
}

func (e *errorStack) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if len(e.msg) == 0 {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *errorStack) Unwrap() error {
	return e.cause
}

// Frames of the place where the error was raised or first wrapped,
// innermost first.
func (e *errorStack) Frames() []Frame {
	return e.frames
}

func callers(skip int) []Frame {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := make([]Frame, 0, n)
	for _, pc := range pcs[:n] {
		frames = append(frames, Frame(pc))
	}
	return frames
}

// NewErrorStack creates an error carrying the current call stack.
// The message convention is "[component] description".
func NewErrorStack(msg string) error {
	return &errorStack{
		msg:    msg,
		frames: callers(1),
	}
}

// WrapErrorStack attaches the current call stack to err, unless err
// already carries one. Returns nil if err is nil.
func WrapErrorStack(err error) error {
	if err == nil {
		return nil
	}
	if es, ok := err.(*errorStack); ok {
		return es
	}
	return &errorStack{
		cause:  err,
		frames: callers(1),
	}
}

// ErrorStackFrames reports the frames recorded by NewErrorStack or
// WrapErrorStack, or nil for foreign errors.
func ErrorStackFrames(err error) []Frame {
	if es, ok := err.(*errorStack); ok {
		return es.Frames()
	}
	return nil
}
