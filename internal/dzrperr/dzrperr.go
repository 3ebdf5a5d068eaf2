// Package dzrperr provides standardized error kinds for the DZRP mediator,
// matching the error-handling design in the mediator specification.
package dzrperr

import (
	"fmt"
	"runtime"
)

// Kind categorizes a mediator-level error.
type Kind string

const (
	KindTransport   Kind = "TRANSPORT"
	KindProtocol    Kind = "PROTOCOL"
	KindUnsupported Kind = "UNSUPPORTED"
	KindValidation  Kind = "VALIDATION"
	KindExpression  Kind = "EXPRESSION"
	KindSnapshot    Kind = "SNAPSHOT"
)

// Error is the standard error shape used across the mediator.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Context map[string]interface{}
	Caller  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Kind, e.Code, e.Message, e.Caller)
}

// New creates a standard error, capturing the immediate caller for diagnostics.
func New(kind Kind, code, message string, context map[string]interface{}) *Error {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Context: context,
		Caller:  caller,
	}
}

// Transport reports a connection-level failure (refused, timed out, reset).
func Transport(code, detail string) *Error {
	return New(KindTransport, code, detail, nil)
}

// TimeoutWaitingFor reports a response timeout for a named request.
func TimeoutWaitingFor(request string, timeoutMs int64) *Error {
	return New(KindTransport, "TIMEOUT",
		fmt.Sprintf("timed out waiting for response to %s", request),
		map[string]interface{}{"request": request, "timeout_ms": timeoutMs})
}

// Protocol reports a malformed frame or unexpected opcode. Fatal: callers
// should tear down the session.
func Protocol(code, detail string) *Error {
	return New(KindProtocol, code, detail, nil)
}

// Unsupported reports a feature the connected remote does not implement.
func Unsupported(feature string) *Error {
	return New(KindUnsupported, "UNSUPPORTED_FEATURE",
		fmt.Sprintf("remote does not support %s", feature),
		map[string]interface{}{"feature": feature})
}

// Validation reports a synchronously-rejected request (bad address, duplicate id, ...).
func Validation(code, detail string, context map[string]interface{}) *Error {
	return New(KindValidation, code, detail, context)
}

// Expression reports a condition/logpoint expression that failed to parse or evaluate.
func Expression(expr string, cause error) *Error {
	return New(KindExpression, "EVAL_FAILED",
		fmt.Sprintf("condition %q failed to evaluate", expr),
		map[string]interface{}{"expression": expr, "cause": causeString(cause)})
}

// Snapshot reports a corrupt .sna/.nex file.
func Snapshot(path string, cause error) *Error {
	return New(KindSnapshot, "CORRUPT_SNAPSHOT",
		fmt.Sprintf("failed to load snapshot %s", path),
		map[string]interface{}{"path": path, "cause": causeString(cause)})
}

func causeString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
