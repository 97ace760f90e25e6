package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"sorted keys", Object{"b": Int(1), "a": Int(2)}, `{"a":2,"b":1}`},
		{"no html escape", String("<a&b>"), `"<a&b>"`},
		{"nested", Object{"x": Array{Bool(true), Null{}, Float(1.5)}}, `{"x":[true,null,1.5]}`},
		{"nfc", String("e\u0301"), "\"\u00e9\""},
		{"line separator literal", String("a\u2028b"), "\"a\u2028b\""},
		{"escaped backslash kept", String(`\u2028`), `"\\u2028"`},
		{"control escaped", String("a\nb"), `"a\nb"`},
		{"negative int", Int(-42), `-42`},
		{"nil is null", nil, `null`},
		{"empty object", Object{}, `{}`},
		{"empty array", Array{}, `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_TrackedContent(t *testing.T) {
	obj := Track(Object{"b": Object{"c": Int(1)}, "a": Int(0)}, nil).(*TrackedObject)
	child, _ := obj.GetObject("b")
	child.Set("c", Int(2))

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":0,"b":{"c":2}}`, string(got))
}

func TestMarshalCanonical_NonFinite(t *testing.T) {
	_, err := MarshalCanonical(Object{"f": Float(math.Inf(1))})
	assert.ErrorContains(t, err, `value for key "f"`)
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	obj := Object{"z": Int(1), "m": Array{String("x")}, "a": Object{"q": Null{}, "b": Bool(false)}}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
