// Package sandbox executes agent-supplied JavaScript in an embedded
// interpreter.
//
// Each execution gets a fresh goja runtime whose global scope holds only the
// standard ECMAScript builtins plus the bindings passed in; no filesystem,
// process, or network access exists unless a binding provides it. The host
// process is what the sandbox protects; side effects through the cloud
// binding are the script's purpose, not a leak.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/awsgate/awsgate/internal/log"
)

// Error kinds reported by Execute.
const (
	KindParse     = "parse"
	KindThrow     = "throw"
	KindNoReturn  = "no-return-value"
	KindSerialize = "serialize"
	KindTimeout   = "timeout"
)

// Error describes one failed script execution.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("script error (%s): %s", e.Kind, e.Message)
}

// Sandbox runs scripts to completion and serializes their results.
type Sandbox struct {
	// Timeout bounds one execution. Zero means no enforced timeout.
	Timeout time.Duration
}

// New returns a Sandbox with the given execution timeout (zero = none).
func New(timeout time.Duration) *Sandbox {
	return &Sandbox{Timeout: timeout}
}

// Execute runs source with the given global bindings and returns the JSON
// text of its result. The script's final bare expression becomes its return
// value; a script that returns nothing fails with a no-return-value error
// rather than succeeding emptily.
func (s *Sandbox) Execute(ctx context.Context, source string, bindings map[string]any) (string, error) {
	normalized := Normalize(source)

	// The body runs inside an immediately-invoked async function: `return`
	// and `await` are legal, and both thrown errors and rejections settle
	// into the promise instead of escaping into the host.
	wrapped := "(async function() {\n" + normalized + "\n})()"

	program, err := goja.Compile("script.js", wrapped, false)
	if err != nil {
		return "", &Error{Kind: KindParse, Message: err.Error()}
	}

	vm := goja.New()
	vm.Set("console", consoleShim(vm))
	for name, binding := range bindings {
		vm.Set(name, binding)
	}

	if s.Timeout > 0 {
		timer := time.AfterFunc(s.Timeout, func() {
			vm.Interrupt("execution timeout")
		})
		defer timer.Stop()
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			vm.Interrupt("canceled")
		})
		defer stop()
	}

	value, err := vm.RunProgram(program)
	if err != nil {
		return "", runError(err)
	}

	// The async IIFE hands back a promise; host bindings are synchronous,
	// so it has settled by the time RunProgram returns.
	if promise, ok := value.Export().(*goja.Promise); ok {
		switch promise.State() {
		case goja.PromiseStateFulfilled:
			value = promise.Result()
		case goja.PromiseStateRejected:
			return "", &Error{Kind: KindThrow, Message: rejectionMessage(promise.Result())}
		default:
			return "", &Error{Kind: KindThrow, Message: "script did not run to completion"}
		}
	}

	if value == nil || goja.IsUndefined(value) {
		return "", &Error{Kind: KindNoReturn, Message: "script produced no return value"}
	}

	return serialize(vm, value)
}

// Normalize rewrites a trailing bare expression statement into an explicit
// return so the computed value isn't silently discarded. Sources the parser
// rejects (for example an explicit top-level return, which is legal once
// wrapped) pass through unchanged.
func Normalize(source string) string {
	program, err := parser.ParseFile(nil, "script.js", source, 0)
	if err != nil || len(program.Body) == 0 {
		return source
	}

	last := program.Body[len(program.Body)-1]
	stmt, ok := last.(*ast.ExpressionStatement)
	if !ok {
		return source
	}

	// Idx values are 1-based offsets into the source.
	at := int(stmt.Idx0()) - 1
	if at < 0 || at > len(source) {
		return source
	}
	return source[:at] + "return " + source[at:]
}

// serialize converts the result via the runtime's own JSON.stringify so
// cyclic structures fail the same way they would in a script.
func serialize(vm *goja.Runtime, value goja.Value) (string, error) {
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return "", &Error{Kind: KindSerialize, Message: "JSON.stringify is unavailable"}
	}

	out, err := stringify(goja.Undefined(), value)
	if err != nil {
		return "", &Error{Kind: KindSerialize, Message: exceptionMessage(err)}
	}
	if goja.IsUndefined(out) {
		return "", &Error{Kind: KindSerialize, Message: "result is not JSON-serializable"}
	}
	return out.String(), nil
}

// runError maps interpreter failures onto the sandbox error taxonomy.
func runError(err error) error {
	if intErr, ok := err.(*goja.InterruptedError); ok {
		return &Error{Kind: KindTimeout, Message: fmt.Sprintf("%v", intErr.Value())}
	}
	if exc, ok := err.(*goja.Exception); ok {
		return &Error{Kind: KindThrow, Message: exc.Value().String()}
	}
	return &Error{Kind: KindThrow, Message: err.Error()}
}

func exceptionMessage(err error) string {
	if exc, ok := err.(*goja.Exception); ok {
		return exc.Value().String()
	}
	return err.Error()
}

func rejectionMessage(value goja.Value) string {
	if value == nil {
		return "script rejected"
	}
	if obj, ok := value.(*goja.Object); ok {
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
			return stack.String()
		}
	}
	return value.String()
}

// consoleShim routes console.log and friends into the structured logger so
// script diagnostics land in the debug file instead of stdout.
func consoleShim(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	sink := func(level func(string, ...any)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]any, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			level("script console", "args", fmt.Sprint(parts...))
			return goja.Undefined()
		}
	}
	obj.Set("log", sink(log.Debug))
	obj.Set("info", sink(log.Info))
	obj.Set("warn", sink(log.Warn))
	obj.Set("error", sink(log.Error))
	return obj
}
