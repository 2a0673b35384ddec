package eval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv() Env {
	return Env{
		"motivo":               String("Enfermedad Inculpable"),
		"duracion":             Int(7),
		"ausencias_ultimo_mes": Int(2),
		"certificate_uploaded": Bool(false),
		"sector":               String("linea1"),
		"tags":                 List(String("a"), String("b")),
	}
}

func TestEval_Conditions(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"comparison", "duracion > 5", true},
		{"comparison false", "duracion > 10", false},
		{"equality", "motivo == 'Enfermedad Inculpable'", true},
		{"inequality", "motivo != 'ART'", true},
		{"and", "duracion > 5 and not certificate_uploaded", true},
		{"or", "duracion > 100 or ausencias_ultimo_mes >= 2", true},
		{"not", "not certificate_uploaded", true},
		{"chained comparison", "1 < duracion < 10", true},
		{"chained comparison false", "1 < duracion < 5", false},
		{"in list", "motivo in ['ART', 'Enfermedad Inculpable']", true},
		{"not in list", "motivo not in ['ART', 'Fallecimiento']", true},
		{"substring", "'Enfermedad' in motivo", true},
		{"arithmetic", "duracion * 2 - 4 == 10", true},
		{"power", "2 ** 3 == 8", true},
		{"builtin len", "len(tags) == 2", true},
		{"builtin min", "min(duracion, 3) == 3", true},
		{"builtin max list", "max([1, 2, 3]) == 3", true},
		{"builtin abs", "abs(0 - duracion) == 7", true},
		{"unknown identifier is null", "nonexistent == None", true},
		{"unknown identifier falsy", "not nonexistent", true},
		{"mixed int float", "duracion == 7.0", true},
		{"parentheses", "(duracion + 1) * 2 == 16", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalBool(tt.expr, testEnv())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_RejectsUnsafeInput(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"assignment", "duracion = 5"},
		{"attribute access", "motivo.upper()"},
		{"subscript", "tags[0]"},
		{"semicolon", "1; 2"},
		{"lambda", "lambda x: x"},
		{"unterminated string", "'abc"},
		{"empty", ""},
		{"dangling operator", "duracion >"},
		{"unknown char", "duracion @ 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			require.Error(t, err)
		})
	}
}

func TestEval_UnknownFunctionFails(t *testing.T) {
	_, err := Eval("open('/etc/passwd')", testEnv())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")

	_, err = Eval("__import__('os')", testEnv())
	require.Error(t, err)
}

func TestEval_PythonishLogicalOperators(t *testing.T) {
	// and/or return one of their operands, not a coerced boolean
	env := testEnv()

	v, err := Eval("motivo and duracion", env)
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())
	assert.Equal(t, int64(7), v.AsInt())

	v, err = Eval("nonexistent or motivo", env)
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind())
	assert.Equal(t, "Enfermedad Inculpable", v.AsString())
}

func TestEval_ShortCircuit(t *testing.T) {
	// The right side would fail, but the left side already decides.
	env := testEnv()

	got, err := EvalBool("certificate_uploaded and boom() > 1", env)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEval_CrossKindComparisons(t *testing.T) {
	env := testEnv()

	// Equality across kinds is simply not equal.
	got, err := EvalBool("motivo == 5", env)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = EvalBool("motivo != 5", env)
	require.NoError(t, err)
	assert.True(t, got)

	// Ordering across kinds is an error.
	_, err = Eval("motivo > 5", env)
	require.Error(t, err)
	var evalErr *EvalError
	assert.ErrorAs(t, err, &evalErr)
}

func TestEval_DivisionByZero(t *testing.T) {
	_, err := Eval("duracion / 0", testEnv())
	require.Error(t, err)
}

func TestEval_TrueDivision(t *testing.T) {
	v, err := Eval("7 / 2", testEnv())
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())
	assert.InDelta(t, 3.5, v.AsFloat(), 1e-9)
}

func TestEval_TimeOrdering(t *testing.T) {
	earlier := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	later := earlier.Add(48 * time.Hour)
	env := Env{"a": Time(earlier), "b": Time(later)}

	got, err := EvalBool("a < b", env)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEval_CallableInEnv(t *testing.T) {
	env := testEnv()
	env["hours_since"] = Callable(func(args []Value) (Value, error) {
		return Float(72), nil
	})

	got, err := EvalBool("hours_since(fecha_falta) > 48", env)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestFromAny_JSONNumbers(t *testing.T) {
	// JSON decoding hands every number over as float64; whole values
	// must land as ints so comparisons against literals behave.
	v, err := FromAny(float64(3))
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())
	assert.Equal(t, int64(3), v.AsInt())

	v, err = FromAny(2.5)
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())
}

func TestValidateCondition(t *testing.T) {
	ok, _ := ValidateCondition("duracion > 5 and not certificate_uploaded")
	assert.True(t, ok)

	ok, reason := ValidateCondition("duracion + 1")
	assert.False(t, ok)
	assert.Contains(t, reason, "true/false")

	ok, _ = ValidateCondition("import os")
	assert.False(t, ok)

	ok, _ = ValidateCondition("")
	assert.False(t, ok)
}
