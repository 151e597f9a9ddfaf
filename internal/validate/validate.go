// Package validate statically checks synthesized crawler modules before they
// are ever executed.
package validate

import (
	"errors"
	"go/parser"
	"go/scanner"
	"go/token"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

// AllowedImports are the only packages a synthesized module may import.
var AllowedImports = []string{
	"context",
	"fmt",
	"net/url",
	"regexp",
	"strings",
	"time",
	scrape.ImportPath,
}

// yaegi prefixes compile errors with "file:line:col: " or just "line:col: ".
var positioned = regexp.MustCompile(`^(?:[^\s:]*:)?(\d+):(\d+): (.*)$`)

// Validator runs the parse, import and type-check passes.
type Validator struct {
	log     logger.Logger
	allowed map[string]bool
}

// New returns a Validator.
func New(log logger.Logger) *Validator {
	allowed := make(map[string]bool, len(AllowedImports))
	for _, p := range AllowedImports {
		allowed[p] = true
	}
	return &Validator{log: log, allowed: allowed}
}

// Validate checks source and returns its diagnostics, each tagged with attempt.
// An empty result means the module compiled. Validate never executes code.
func (v *Validator) Validate(source string, attempt int) domain.Diagnostics {
	diags := v.parse(source, attempt)
	if !diags.OK() {
		v.report(attempt, diags)
		return diags
	}
	if diags = v.compile(source, attempt); !diags.OK() {
		v.report(attempt, diags)
		return diags
	}
	v.log.Debug("Module validated", logger.Attempt("static", attempt))
	return nil
}

func (v *Validator) parse(source string, attempt int) domain.Diagnostics {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "crawler.go", source, parser.AllErrors|parser.SkipObjectResolution)
	if err != nil {
		return fromParseError(err, attempt)
	}

	var diags domain.Diagnostics
	for _, imp := range file.Imports {
		path, unquoteErr := strconv.Unquote(imp.Path.Value)
		if unquoteErr != nil || !v.allowed[path] {
			pos := fset.Position(imp.Pos())
			diags = append(diags, domain.Diagnostic{
				Message: "import not allowed: " + imp.Path.Value,
				Attempt: attempt,
				Line:    pos.Line,
				Column:  pos.Column,
			})
		}
	}
	return diags
}

func fromParseError(err error, attempt int) domain.Diagnostics {
	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return domain.Diagnostics{{Message: err.Error(), Attempt: attempt}}
	}
	diags := make(domain.Diagnostics, 0, len(list))
	for _, e := range list {
		diags = append(diags, domain.Diagnostic{
			Message: e.Msg,
			Attempt: attempt,
			Line:    e.Pos.Line,
			Column:  e.Pos.Column,
		})
	}
	return diags
}

func (v *Validator) compile(source string, attempt int) (diags domain.Diagnostics) {
	defer func() {
		if r := recover(); r != nil {
			diags = domain.Diagnostics{{Message: scrape.Recovered(r).Error(), Attempt: attempt}}
		}
	}()

	i, err := NewInterpreter()
	if err != nil {
		return domain.Diagnostics{{Message: err.Error(), Attempt: attempt}}
	}
	if _, err = i.Compile(source); err != nil {
		return fromCompileError(err, attempt)
	}
	return nil
}

func fromCompileError(err error, attempt int) domain.Diagnostics {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		return fromParseError(list, attempt)
	}
	var diags domain.Diagnostics
	for _, line := range strings.Split(strings.TrimSpace(err.Error()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d := domain.Diagnostic{Message: line, Attempt: attempt}
		if m := positioned.FindStringSubmatch(line); m != nil {
			d.Line, _ = strconv.Atoi(m[1])
			d.Column, _ = strconv.Atoi(m[2])
			d.Message = m[3]
		}
		diags = append(diags, d)
	}
	if len(diags) == 0 {
		diags = domain.Diagnostics{{Message: "compile failed", Attempt: attempt}}
	}
	return diags
}

func (v *Validator) report(attempt int, diags domain.Diagnostics) {
	v.log.Warn("Module rejected",
		logger.Attempt("static", attempt),
		logger.Int("diagnostics", len(diags)),
		logger.Strings("messages", diags.Messages()),
	)
}

// NewInterpreter returns a yaegi interpreter that can only see the allowed
// imports. The executor evaluates modules in the same sandbox.
func NewInterpreter() (*interp.Interpreter, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(sandboxSymbols); err != nil {
		return nil, err
	}
	if err := i.Use(scrape.Symbols); err != nil {
		return nil, err
	}
	return i, nil
}

var sandboxSymbols = restrict(stdlib.Symbols, AllowedImports)

// restrict keeps the stdlib exports whose import path is allowed. Keys in
// stdlib.Symbols have the form "path/name", e.g. "net/url/url".
func restrict(all map[string]map[string]reflect.Value, paths []string) map[string]map[string]reflect.Value {
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[p] = true
	}
	out := make(map[string]map[string]reflect.Value)
	for key, syms := range all {
		idx := strings.LastIndex(key, "/")
		if idx < 0 || !keep[key[:idx]] {
			continue
		}
		out[key] = syms
	}
	return out
}
