package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertbuff/imagine"
)

// compileOne compiles source expected to hold exactly one mapping.
func compileOne(t *testing.T, source string) *Mapping {
	t.Helper()
	m, err := Compile(source)
	require.NoError(t, err)
	require.Len(t, m.Mappings, 1)
	return m.Mappings[0]
}

func TestCompileModelBasic(t *testing.T) {
	m, err := Compile(`
		mapping: price: {
			doc: "unit price by sku"
			params: ["sku"]
			table: [
				{ at: [1], value: 100 },
				{ at: ["pear"], value: 3 },
			]
			default: 0
		}

		mapping: stock: {
			table: [
				{ at: ["pear"], value: true },
			]
		}
	`)
	require.NoError(t, err)
	require.Len(t, m.Mappings, 2)

	price, ok := m.Lookup("price")
	require.True(t, ok)
	assert.Equal(t, "unit price by sku", price.Doc)
	assert.Equal(t, []string{"sku"}, price.Params)
	require.Len(t, price.Rows, 2)
	assert.True(t, price.Rows[0].Point.Equal(imagine.P(imagine.Int(1))))
	assert.Equal(t, imagine.Int(100), price.Rows[0].Value)
	assert.Equal(t, imagine.String("pear"), price.Rows[1].Point.Pos[0])

	def, ok := price.Default()
	require.True(t, ok)
	assert.Equal(t, imagine.Int(0), def)
	assert.False(t, price.HasExpr())

	stock, ok := m.Lookup("stock")
	require.True(t, ok)
	_, ok = stock.Default()
	assert.False(t, ok)

	_, ok = m.Lookup("missing")
	assert.False(t, ok)
}

func TestCompileModelNoMappings(t *testing.T) {
	_, err := Compile(`other: 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping")
	assert.Contains(t, err.Error(), "required")

	_, err = Compile(`mapping: {}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestCompileModelNoRules(t *testing.T) {
	_, err := Compile(`
		mapping: empty: {
			doc: "no way to produce a value"
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one of table, expr, default")
}

func TestCompileModelRejectsFloat(t *testing.T) {
	_, err := Compile(`
		mapping: bad: {
			table: [{ at: [1], value: 2.5 }]
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
	assert.Contains(t, err.Error(), "forbidden")
}

func TestCompileModelRejectsFloatInAt(t *testing.T) {
	_, err := Compile(`
		mapping: bad: {
			table: [{ at: [1.5], value: 2 }]
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestCompileModelRejectsNull(t *testing.T) {
	_, err := Compile(`
		mapping: bad: {
			table: [{ at: [1], value: null }]
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestCompileModelRowMissingValue(t *testing.T) {
	_, err := Compile(`
		mapping: bad: {
			table: [{ at: [1] }]
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value")
}

func TestCompileModelRowMissingAt(t *testing.T) {
	_, err := Compile(`
		mapping: bad: {
			table: [{ value: 2 }]
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at")
}

func TestCompileModelExprMissingArgField(t *testing.T) {
	_, err := Compile(`
		mapping: bad: {
			expr: { in: "x", out: 3 }
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument field")
}

func TestCompileModelExprMissingOut(t *testing.T) {
	_, err := Compile(`
		mapping: bad: {
			expr: { in: "x", x: int }
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out")
}

func TestMappingBodyRowLookup(t *testing.T) {
	mp := compileOne(t, `
		mapping: price: {
			table: [
				{ at: [1], value: 100 },
				{ at: ["pear"], value: 3 },
			]
		}
	`)
	body := mp.Body()

	v, err := body(imagine.P(imagine.Int(1)))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(100), v)

	v, err = body(imagine.P(imagine.String("pear")))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(3), v)
}

func TestMappingBodyKeywordRows(t *testing.T) {
	mp := compileOne(t, `
		mapping: price: {
			table: [
				{ at: [1], kw: { mode: "fast" }, value: 7 },
			]
			default: 0
		}
	`)
	body := mp.Body()

	v, err := body(imagine.P(imagine.Int(1)).With("mode", imagine.String("fast")))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(7), v)

	// Omitting the keyword is a different point and misses the row.
	v, err = body(imagine.P(imagine.Int(1)))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(0), v)
}

func TestMappingBodyExpr(t *testing.T) {
	mp := compileOne(t, `
		mapping: double: {
			expr: { in: "x", x: int, out: x * 2 }
		}
	`)
	body := mp.Body()

	v, err := body(imagine.P(imagine.Int(21)))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(42), v)
}

func TestMappingBodyExprSkipsOtherShapes(t *testing.T) {
	mp := compileOne(t, `
		mapping: double: {
			expr: { in: "x", x: int, out: x * 2 }
			default: -1
		}
	`)
	body := mp.Body()

	// Two positional args never reach the single-argument expression.
	v, err := body(imagine.P(imagine.Int(1), imagine.Int(2)))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(-1), v)

	// A keyword arg does not either.
	v, err = body(imagine.P(imagine.Int(1)).With("mode", imagine.String("fast")))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(-1), v)
}

func TestMappingBodyExprTypeMismatch(t *testing.T) {
	mp := compileOne(t, `
		mapping: double: {
			expr: { in: "x", x: int, out: x * 2 }
		}
	`)

	_, err := mp.Body()(imagine.P(imagine.String("pear")))
	require.Error(t, err)
}

func TestMappingBodyRowsBeforeExpr(t *testing.T) {
	mp := compileOne(t, `
		mapping: double: {
			table: [{ at: [3], value: 0 }]
			expr: { in: "x", x: int, out: x * 2 }
		}
	`)
	body := mp.Body()

	v, err := body(imagine.P(imagine.Int(3)))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(0), v, "the pinned row wins over the expression")

	v, err = body(imagine.P(imagine.Int(4)))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(8), v)
}

func TestMappingBodyDefault(t *testing.T) {
	mp := compileOne(t, `
		mapping: flag: {
			default: false
		}
	`)

	v, err := mp.Body()(imagine.P(imagine.String("anything")))
	require.NoError(t, err)
	assert.Equal(t, imagine.Bool(false), v)
}

func TestMappingBodyUndefined(t *testing.T) {
	mp := compileOne(t, `
		mapping: price: {
			table: [{ at: [1], value: 100 }]
		}
	`)

	_, err := mp.Body()(imagine.P(imagine.Int(7)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `mapping "price" undefined at (7)`)
}

func TestMappingBodyStructuredValues(t *testing.T) {
	mp := compileOne(t, `
		mapping: lookup: {
			table: [{
				at: ["pear"]
				value: { colors: ["green", "red"], stocked: true }
			}]
		}
	`)

	v, err := mp.Body()(imagine.P(imagine.String("pear")))
	require.NoError(t, err)
	want := imagine.Object{
		"colors":  imagine.Array{imagine.String("green"), imagine.String("red")},
		"stocked": imagine.Bool(true),
	}
	assert.True(t, imagine.Equal(want, v))
}

func TestModelFns(t *testing.T) {
	m, err := Compile(`
		mapping: price: {
			table: [{ at: [1], value: 100 }]
			default: 0
		}
	`)
	require.NoError(t, err)

	fns := m.Fns()
	require.Contains(t, fns, "price")
	f := fns["price"]

	v, err := f.Call(imagine.Int(1))
	require.NoError(t, err)
	assert.Equal(t, imagine.Int(100), v)

	// Compiled mappings take overrides like any other callable.
	w := f.At(imagine.Int(1)).Imagine(imagine.Int(-5))
	err = imagine.With(w, func() error {
		v, err := f.Call(imagine.Int(1))
		require.NoError(t, err)
		assert.Equal(t, imagine.Int(-5), v)
		return nil
	})
	require.NoError(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.cue")
	source := `
		mapping: price: {
			table: [{ at: [1], value: 100 }]
		}
	`
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Mappings, 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading model")
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{
		Field:   "mapping",
		Message: "at least one mapping is required",
	}

	assert.Equal(t, "mapping: at least one mapping is required", err.Error())
}
