// Package jsengine evaluates the JavaScript that flows use for variables,
// conditions and small computations such as test dates.
package jsengine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// DefaultScriptTimeout bounds a single script or expression.
const DefaultScriptTimeout = 10 * time.Second

// DateLayout is the short date format the application's date pickers accept.
const DateLayout = "01/02/06"

// Session describes the browser session scripts run against. It is exposed
// to scripts as the read-only pookie object.
type Session struct {
	Subject string // PC1 id the session is bound to
	Backend string // selenium, playwright
	Browser string
	BaseURL string
}

// Engine wraps a goja runtime. It is safe for use by one flow at a time;
// the mutex only guards against console callbacks racing Close.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	session   Session
	timeout   time.Duration
	now       func() time.Time
	log       *zap.Logger
	mu        sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger routes console output to l.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTimeout overrides DefaultScriptTimeout. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithClock overrides the clock behind pookie.date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a new JS engine instance.
func New(opts ...Option) *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
		timeout:   DefaultScriptTimeout,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.setupBuiltins()
	return e
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.runtime.Set("json", e.jsonFunc())
	// Scripts hand values back to the flow through output.
	e.runtime.Set("output", e.runtime.NewObject())
	e.runtime.Set("pookie", e.pookieObject())
}

// setupConsole sends console.log/warn/error to the structured log.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprint(arg.Export())
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "error":
				e.log.Error("script console", zap.String("message", msg))
			case "warn":
				e.log.Warn("script console", zap.String("message", msg))
			default:
				e.log.Info("script console", zap.String("message", msg))
			}
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc("info"))
	console.Set("info", makeConsoleFunc("info"))
	console.Set("warn", makeConsoleFunc("warn"))
	console.Set("error", makeConsoleFunc("error"))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper that parses a JSON string.
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		parse, ok := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		if !ok {
			panic(e.runtime.NewTypeError("JSON.parse unavailable"))
		}
		v, err := parse(goja.Undefined(), call.Arguments[0])
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return v
	}
}

// pookieObject builds the pookie global: session details plus date helpers
// for the short dates the forms expect.
func (e *Engine) pookieObject() *goja.Object {
	obj := e.runtime.NewObject()
	accessor := func(name string, get func() string) {
		obj.DefineAccessorProperty(name, e.runtime.ToValue(get), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	accessor("subject", func() string { return e.session.Subject })
	accessor("backend", func() string { return e.session.Backend })
	accessor("browser", func() string { return e.session.Browser })
	accessor("baseUrl", func() string { return e.session.BaseURL })

	// pookie.date(offsetDays?, layout?) formats today shifted by offsetDays.
	obj.Set("date", func(call goja.FunctionCall) goja.Value {
		offset := 0
		if len(call.Arguments) > 0 && !goja.IsUndefined(call.Arguments[0]) {
			offset = int(call.Arguments[0].ToInteger())
		}
		layout := DateLayout
		if len(call.Arguments) > 1 && !goja.IsUndefined(call.Arguments[1]) {
			layout = call.Arguments[1].String()
		}
		return e.runtime.ToValue(e.now().AddDate(0, 0, offset).Format(layout))
	})
	return obj
}

// SetVariable sets a variable accessible in JS as a global.
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables.
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// SetSession updates the values behind the pookie object.
func (e *Engine) SetSession(s Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = s
}

// GetOutput returns a copy of the output object.
func (e *Engine) GetOutput() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make(map[string]interface{})
	v := e.runtime.Get("output")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return result
	}
	if m, ok := v.Export().(map[string]interface{}); ok {
		for k, val := range m {
			result[k] = val
		}
	}
	return result
}

// run executes src under the script timeout.
func (e *Engine) run(src string) (goja.Value, error) {
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			e.runtime.Interrupt(fmt.Sprintf("script exceeded %s", e.timeout))
		})
		defer func() {
			timer.Stop()
			e.runtime.ClearInterrupt()
		}()
	}
	return e.runtime.RunString(src)
}

// Eval evaluates a JavaScript expression and returns the exported result.
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.run(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and formats the result.
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}

// RunScript runs a script for its side effects.
func (e *Engine) RunScript(script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.run(script); err != nil {
		return fmt.Errorf("JS runtime error: %w", err)
	}
	return nil
}

// DefineUndefinedIfMissing defines name as undefined when it is not yet
// defined, so conditions on unset variables are falsy instead of throwing.
func (e *Engine) DefineUndefinedIfMissing(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.variables[name]; exists {
		return
	}
	if val := e.runtime.Get(name); val == nil {
		e.runtime.Set(name, goja.Undefined())
	}
}

// ExpandVariables replaces every ${expr} in text with its evaluated value.
// Expressions that fail to evaluate are left in place.
func (e *Engine) ExpandVariables(text string) (string, error) {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			start = idx + 2
			continue
		}

		value, err := e.EvalString(result[idx+2 : end-1])
		if err != nil {
			start = end
			continue
		}
		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result, nil
}

// Close interrupts any script still running. Safe to call multiple times.
func (e *Engine) Close() {
	e.runtime.Interrupt("engine closed")
}
