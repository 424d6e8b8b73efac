package script

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"reflect"
	"sort"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Outcome classifies a hook invocation.
type Outcome int

const (
	// OutcomeOK means the hook ran and returned normally.
	OutcomeOK Outcome = iota
	// OutcomeHookNotFound means the script declares no such function.
	OutcomeHookNotFound
	// OutcomeFault means the hook panicked, returned a non-nil error or
	// could not be called with the payload.
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "executed"
	case OutcomeHookNotFound:
		return "not_found"
	case OutcomeFault:
		return "fault"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Sandbox is one compiled script in its own yaegi interpreter.
type Sandbox struct {
	interp *interp.Interpreter
	hooks  map[string]reflect.Value
}

// Compile loads src into a fresh interpreter that can import only the
// allowed standard library packages and the given exports. A missing
// package clause is treated as "package main".
func Compile(src string, allowed []string, exports interp.Exports) (sb *Sandbox, err error) {
	src = withPackageClause(src)

	fset := token.NewFileSet()
	file, parseErr := parser.ParseFile(fset, "", src, parser.SkipObjectResolution)
	if parseErr == nil {
		if err := checkScript(fset, file); err != nil {
			return nil, err
		}
	}

	i := interp.New(interp.Options{})
	if err := i.Use(restrictedStdlib(allowed)); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if err := i.Use(exports); err != nil {
		return nil, fmt.Errorf("load capability symbols: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			sb, err = nil, fmt.Errorf("panic during load: %v", r)
		}
	}()
	if _, err := i.Eval(src); err != nil {
		return nil, err
	}

	sb = &Sandbox{interp: i, hooks: map[string]reflect.Value{}}
	for _, name := range declaredFuncs(file) {
		v, err := i.Eval(name)
		if err != nil || v.Kind() != reflect.Func || v.IsNil() {
			continue
		}
		sb.hooks[name] = v
	}
	return sb, nil
}

// Hooks lists the top-level functions the script declares.
func (s *Sandbox) Hooks() []string {
	names := make([]string, 0, len(s.hooks))
	for name := range s.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the script declares hook.
func (s *Sandbox) Has(hook string) bool {
	_, ok := s.hooks[hook]
	return ok
}

// Invoke calls hook with args. A hook may return nothing or a single error.
func (s *Sandbox) Invoke(hook string, args ...any) (out Outcome, err error) {
	fn, ok := s.hooks[hook]
	if !ok {
		return OutcomeHookNotFound, nil
	}

	in, err := callArgs(fn.Type(), args)
	if err != nil {
		return OutcomeFault, err
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = OutcomeFault, fmt.Errorf("panic: %v", r)
		}
	}()

	results := fn.Call(in)
	if len(results) == 1 && !results[0].IsNil() {
		if hookErr, ok := results[0].Interface().(error); ok {
			return OutcomeFault, hookErr
		}
	}
	return OutcomeOK, nil
}

func callArgs(ft reflect.Type, args []any) ([]reflect.Value, error) {
	if ft.NumIn() != len(args) || ft.IsVariadic() {
		return nil, fmt.Errorf("signature mismatch: want %d parameter(s), hook has %s", len(args), ft)
	}
	switch {
	case ft.NumOut() == 0:
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
	default:
		return nil, fmt.Errorf("signature mismatch: hook %s may only return error", ft)
	}

	in := make([]reflect.Value, len(args))
	for idx, arg := range args {
		v := reflect.ValueOf(arg)
		want := ft.In(idx)
		if !v.IsValid() {
			v = reflect.Zero(want)
		}
		if !v.Type().AssignableTo(want) {
			return nil, fmt.Errorf("signature mismatch: parameter %d is %s, payload is %s", idx, want, v.Type())
		}
		in[idx] = v
	}
	return in, nil
}

// withPackageClause prefixes "package main;" on the first line when src has
// no package clause, so diagnostics keep their line numbers.
func withPackageClause(src string) string {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "", src, parser.PackageClauseOnly); err == nil {
		return src
	}
	return "package main; " + src
}

// checkScript rejects packages other than main and any go statement.
func checkScript(fset *token.FileSet, file *ast.File) error {
	if name := file.Name.Name; name != "main" {
		return fmt.Errorf("%s: package %s: scripts must be package main", fset.Position(file.Name.Pos()), name)
	}
	var err error
	ast.Inspect(file, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		if stmt, ok := n.(*ast.GoStmt); ok {
			err = fmt.Errorf("%s: go statements are not allowed", fset.Position(stmt.Pos()))
			return false
		}
		return true
	})
	return err
}

func declaredFuncs(file *ast.File) []string {
	if file == nil {
		return nil
	}
	var names []string
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Name.Name == "main" || fn.Name.Name == "init" {
			continue
		}
		names = append(names, fn.Name.Name)
	}
	return names
}

// deniedSymbols are stdlib functions that run script code on another
// goroutine.
var deniedSymbols = map[string][]string{
	"time/time": {"AfterFunc"},
}

func restrictedStdlib(allowed []string) interp.Exports {
	restricted := interp.Exports{}
	for _, pkg := range allowed {
		key := pkg + "/" + path.Base(pkg)
		syms, ok := stdlib.Symbols[key]
		if !ok {
			continue
		}
		if denied := deniedSymbols[key]; len(denied) > 0 {
			filtered := make(map[string]reflect.Value, len(syms))
			for name, v := range syms {
				filtered[name] = v
			}
			for _, name := range denied {
				delete(filtered, name)
			}
			syms = filtered
		}
		restricted[key] = syms
	}
	return restricted
}
