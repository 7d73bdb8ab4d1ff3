package eval

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/procrun/pkg/vars"
)

// Evaluator compiles and runs condition expressions with expr-lang.
//
// The language is deliberately small: string/number/bool literals, comparison
// and arithmetic operators, and/or/not, in, matches, contains, startsWith,
// endsWith, list literals, and the fixed function table below. All expr
// builtins are disabled and the environment holds only constants, so an
// expression cannot reach variables, files, processes, or the network.
// Procedure authors are still trusted: nothing here escapes shell commands.
//
// Compiled programs are cached; an Evaluator is safe for concurrent use.
type Evaluator struct {
	options []expr.Option

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// Default is the evaluator used by the runtime and the validator.
var Default = NewEvaluator()

// constants are the only names visible to expressions besides functions.
// The capitalised spellings keep older procedure files working.
var constants = map[string]any{
	"True":  true,
	"False": false,
	"None":  nil,
}

// mixedSignatures are the operand pairs that expr refuses to compare. Values
// of different kinds are never equal, so '3' == 3 is false rather than a
// compile error.
var mixedSignatures = []any{
	new(func(string, int) bool),
	new(func(int, string) bool),
	new(func(string, float64) bool),
	new(func(float64, string) bool),
	new(func(string, bool) bool),
	new(func(bool, string) bool),
}

type function struct {
	name string
	fn   func(args ...any) (any, error)
}

// functions is the fixed table exposed to expressions. It is built once and
// never modified.
var functions = []function{
	{"len", fnLen},
	{"lower", stringFn(strings.ToLower)},
	{"upper", stringFn(strings.ToUpper)},
	{"trim", stringFn(strings.TrimSpace)},
	{"str", fnStr},
	{"int", fnInt},
	{"float", fnFloat},
}

// Functions returns the names callable from expressions.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for _, f := range functions {
		names = append(names, f.name)
	}
	sort.Strings(names)
	return names
}

// NewEvaluator creates an evaluator over the fixed function table.
func NewEvaluator() *Evaluator {
	opts := []expr.Option{
		expr.Env(constants),
		expr.DisableAllBuiltins(),
	}
	for _, f := range functions {
		opts = append(opts, expr.Function(f.name, f.fn))
	}
	opts = append(opts,
		expr.Function("mixedEqual", func(...any) (any, error) { return false, nil }, mixedSignatures...),
		expr.Function("mixedNotEqual", func(...any) (any, error) { return true, nil }, mixedSignatures...),
		expr.Operator("==", "mixedEqual"),
		expr.Operator("!=", "mixedNotEqual"),
	)
	return &Evaluator{
		options: opts,
		cache:   make(map[string]*vm.Program),
	}
}

// Check compiles an expression without running it.
func (e *Evaluator) Check(expression string) error {
	_, err := e.compile(expression)
	return err
}

// Eval compiles (or reuses) and runs an expression, returning its value.
func (e *Evaluator) Eval(expression string) (any, error) {
	prg, err := e.compile(expression)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(prg, constants)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	return out, nil
}

// EvalBool evaluates an expression and reduces the result to its truthiness.
func (e *Evaluator) EvalBool(expression string) (bool, error) {
	out, err := e.Eval(expression)
	if err != nil {
		return false, err
	}
	return Truthy(out), nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	e.mu.RLock()
	prg, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, e.options...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}

	e.mu.Lock()
	e.cache[expression] = prg
	e.mu.Unlock()
	return prg, nil
}

// Truthy reports whether v counts as true: false, nil, zero numbers, empty
// strings and empty collections are false; everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func arity(name string, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s() takes %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func stringFn(f func(string) string) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return f(vars.Format(args[0])), nil
	}
}

func fnLen(args ...any) (any, error) {
	if err := arity("len", args, 1); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok {
		return len([]rune(s)), nil
	}
	rv := reflect.ValueOf(args[0])
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return nil, fmt.Errorf("len() of unsized value %T", args[0])
}

func fnStr(args ...any) (any, error) {
	if err := arity("str", args, 1); err != nil {
		return nil, err
	}
	return vars.Format(args[0]), nil
}

func fnInt(args ...any) (any, error) {
	if err := arity("int", args, 1); err != nil {
		return nil, err
	}
	switch t := args[0].(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("int(): invalid literal %q", t)
		}
		return n, nil
	}
	return nil, fmt.Errorf("int() of unsupported value %T", args[0])
}

func fnFloat(args ...any) (any, error) {
	if err := arity("float", args, 1); err != nil {
		return nil, err
	}
	switch t := args[0].(type) {
	case int:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("float(): invalid literal %q", t)
		}
		return f, nil
	}
	return nil, fmt.Errorf("float() of unsupported value %T", args[0])
}
