package model

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/robertbuff/imagine"
)

// Model is an ordered collection of compiled mappings.
type Model struct {
	Mappings []*Mapping
}

// Mapping is one declaratively defined callable: a name plus rules that
// produce a value for a point.
type Mapping struct {
	Name   string
	Doc    string
	Params []string
	Rows   []Row

	expr *exprRule
	def  imagine.Value
}

// Row pins the mapping's result at one exact point.
type Row struct {
	Point imagine.Point
	Value imagine.Value
}

type exprRule struct {
	in   string
	body cue.Value
}

// Lookup returns the mapping with the given name.
func (m *Model) Lookup(name string) (*Mapping, bool) {
	for _, mp := range m.Mappings {
		if mp.Name == name {
			return mp, true
		}
	}
	return nil, false
}

// Fns wraps every mapping into a callable, ready for scoped overrides.
func (m *Model) Fns(opts ...imagine.Option) map[string]*imagine.Fn {
	fns := make(map[string]*imagine.Fn, len(m.Mappings))
	for _, mp := range m.Mappings {
		fns[mp.Name] = imagine.Wrap(mp.Name, mp.Body(), opts...)
	}
	return fns
}

// Body lowers the mapping to a callable body. Rows are checked in
// declaration order, then expr, then default.
func (m *Mapping) Body() imagine.Body {
	return func(p imagine.Point) (imagine.Value, error) {
		for _, row := range m.Rows {
			if row.Point.Equal(p) {
				return row.Value, nil
			}
		}
		if m.expr != nil {
			value, ok, err := m.expr.eval(p)
			if err != nil {
				return nil, err
			}
			if ok {
				return value, nil
			}
		}
		if m.def != nil {
			return m.def, nil
		}
		return nil, fmt.Errorf("mapping %q undefined at %s", m.Name, p)
	}
}

// HasExpr reports whether the mapping carries an expression rule.
func (m *Mapping) HasExpr() bool { return m.expr != nil }

// Default returns the fallback value, if declared.
func (m *Mapping) Default() (imagine.Value, bool) {
	if m.def == nil {
		return nil, false
	}
	return m.def, true
}

// Compile parses CUE source text into a Model.
func Compile(source string) (*Model, error) {
	ctx := cuecontext.New()
	return CompileModel(ctx.CompileString(source))
}

// Load reads and compiles a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	ctx := cuecontext.New()
	return CompileModel(ctx.CompileBytes(data, cue.Filename(path)))
}

// CompileModel parses a CUE value into a Model.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the file root, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`mapping: price: { ... }`)
//	m, err := CompileModel(v)
func CompileModel(v cue.Value) (*Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	mappingVal := v.LookupPath(cue.ParsePath("mapping"))
	if !mappingVal.Exists() {
		return nil, &CompileError{
			Field:   "mapping",
			Message: "at least one mapping is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := mappingVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	model := &Model{}
	for iter.Next() {
		mp, err := compileMapping(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		model.Mappings = append(model.Mappings, mp)
	}
	if len(model.Mappings) == 0 {
		return nil, &CompileError{
			Field:   "mapping",
			Message: "at least one mapping is required",
			Pos:     v.Pos(),
		}
	}

	return model, nil
}

// compileMapping parses a single mapping struct.
func compileMapping(name string, v cue.Value) (*Mapping, error) {
	mp := &Mapping{Name: name}

	// Parse doc (optional prose for summaries)
	docVal := v.LookupPath(cue.ParsePath("doc"))
	if docVal.Exists() {
		doc, err := docVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		mp.Doc = doc
	}

	// Parse params (optional, names the positional slots)
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		iter, err := paramsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			param, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			mp.Params = append(mp.Params, param)
		}
	}

	rows, err := parseTable(name, v)
	if err != nil {
		return nil, err
	}
	mp.Rows = rows

	mp.expr, err = parseExpr(name, v)
	if err != nil {
		return nil, err
	}

	defVal := v.LookupPath(cue.ParsePath("default"))
	if defVal.Exists() {
		def, err := fromCUE(defVal)
		if err != nil {
			return nil, err
		}
		mp.def = def
	}

	// A mapping with no rule at all can never produce a value.
	if len(mp.Rows) == 0 && mp.expr == nil && mp.def == nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("mapping.%s", name),
			Message: "mapping must define at least one of table, expr, default",
			Pos:     v.Pos(),
		}
	}

	return mp, nil
}

// parseTable extracts row definitions from the mapping.
func parseTable(name string, v cue.Value) ([]Row, error) {
	tableVal := v.LookupPath(cue.ParsePath("table"))
	if !tableVal.Exists() {
		return nil, nil
	}

	iter, err := tableVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rows []Row
	for i := 0; iter.Next(); i++ {
		rowVal := iter.Value()

		atVal := rowVal.LookupPath(cue.ParsePath("at"))
		if !atVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("mapping.%s.table[%d].at", name, i),
				Message: "table rows require an at list",
				Pos:     rowVal.Pos(),
			}
		}
		atIter, err := atVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var pos []imagine.Value
		for atIter.Next() {
			arg, err := fromCUE(atIter.Value())
			if err != nil {
				return nil, err
			}
			pos = append(pos, arg)
		}
		point := imagine.P(pos...)

		kwVal := rowVal.LookupPath(cue.ParsePath("kw"))
		if kwVal.Exists() {
			kwIter, err := kwVal.Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for kwIter.Next() {
				kwValue, err := fromCUE(kwIter.Value())
				if err != nil {
					return nil, err
				}
				point = point.With(kwIter.Label(), kwValue)
			}
		}

		valVal := rowVal.LookupPath(cue.ParsePath("value"))
		if !valVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("mapping.%s.table[%d].value", name, i),
				Message: "table rows require a value",
				Pos:     rowVal.Pos(),
			}
		}
		value, err := fromCUE(valVal)
		if err != nil {
			return nil, err
		}

		rows = append(rows, Row{Point: point, Value: value})
	}

	return rows, nil
}

// parseExpr extracts the expression rule from the mapping. The expr
// struct names its argument field via in and must declare both that
// field and out.
func parseExpr(name string, v cue.Value) (*exprRule, error) {
	exprVal := v.LookupPath(cue.ParsePath("expr"))
	if !exprVal.Exists() {
		return nil, nil
	}

	inVal := exprVal.LookupPath(cue.ParsePath("in"))
	if !inVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("mapping.%s.expr.in", name),
			Message: "expr requires an in field naming the argument",
			Pos:     exprVal.Pos(),
		}
	}
	in, err := inVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	if !exprVal.LookupPath(cue.ParsePath(in)).Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("mapping.%s.expr.%s", name, in),
			Message: fmt.Sprintf("expr must declare the argument field %q", in),
			Pos:     exprVal.Pos(),
		}
	}
	if !exprVal.LookupPath(cue.ParsePath("out")).Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("mapping.%s.expr.out", name),
			Message: "expr requires an out field",
			Pos:     exprVal.Pos(),
		}
	}

	return &exprRule{in: in, body: exprVal}, nil
}

// eval applies the expression to a single positional argument. Points
// with a different shape fall through to the next rule.
func (e *exprRule) eval(p imagine.Point) (imagine.Value, bool, error) {
	if len(p.Pos) != 1 || len(p.KW) != 0 {
		return nil, false, nil
	}

	filled := e.body.FillPath(cue.ParsePath(e.in), toGo(p.Pos[0]))
	out := filled.LookupPath(cue.ParsePath("out"))
	if err := out.Err(); err != nil {
		return nil, false, formatCUEError(err)
	}
	if err := out.Validate(cue.Concrete(true)); err != nil {
		return nil, false, formatCUEError(err)
	}
	value, err := fromCUE(out)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// fromCUE converts a concrete CUE value into the engine's value model.
// Floats are forbidden - use int instead.
func fromCUE(v cue.Value) (imagine.Value, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return imagine.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return imagine.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return imagine.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := imagine.Array{}
		for iter.Next() {
			elem, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := imagine.Object{}
		for iter.Next() {
			field, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = field
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	case cue.NullKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "null values are forbidden",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("value is not concrete: %v", v),
			Pos:     v.Pos(),
		}
	}
}

// toGo lowers an engine value to a plain Go value for FillPath.
func toGo(v imagine.Value) any {
	switch x := v.(type) {
	case imagine.String:
		return string(x)
	case imagine.Int:
		return int64(x)
	case imagine.Bool:
		return bool(x)
	case imagine.Array:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = toGo(elem)
		}
		return out
	case imagine.Object:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			out[k] = toGo(elem)
		}
		return out
	}
	panic(fmt.Sprintf("imagine: unknown value type %T", v))
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
