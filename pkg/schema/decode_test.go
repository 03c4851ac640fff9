package schema

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pointShape = NewShape("Point",
		Required("x", Int()),
		Required("y", Int()),
		Optional("label", String()),
	)

	pathShape = NewShape("Path",
		Required("name", String()),
		Required("points", ArrayOf(ObjectOf(pointShape))),
		Optional("tags", ArrayOf(String())),
		Optional("weight", Float()),
		Optional("closed", Bool()),
		Optional("meta", Any()),
	)
)

func requireReason(t *testing.T, err error, want Reason) *DecodeError {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)

	var de *DecodeError
	require.True(t, errors.As(err, &de), "want *DecodeError, got %T", err)
	assert.Equal(t, want, de.Reason, de.Error())
	return de
}

func TestDecode_UnknownFieldsIgnored(t *testing.T) {
	obj, err := Decode([]byte(`{"x":1,"y":2,"z":3,"nested":{"a":[1,2]}}`), pointShape)
	require.NoError(t, err)

	assert.Equal(t, int64(1), obj.Int("x"))
	assert.Equal(t, int64(2), obj.Int("y"))
	assert.False(t, obj.Has("z"))
	assert.False(t, obj.Has("label"))
}

func TestDecode_IntegerWidening(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int64
		wantErr bool
	}{
		{"integer", `{"x":10,"y":0}`, 10, false},
		{"integral float", `{"x":10.0,"y":0}`, 10, false},
		{"exponent", `{"x":1e3,"y":0}`, 1000, false},
		{"negative integral float", `{"x":-4.00,"y":0}`, -4, false},
		{"fractional float", `{"x":10.5,"y":0}`, 0, true},
		{"overflow", `{"x":1e30,"y":0}`, 0, true},
		{"numeric string", `{"x":"10","y":0}`, 0, true},
		{"boolean", `{"x":true,"y":0}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Decode([]byte(tt.payload), pointShape)
			if tt.wantErr {
				de := requireReason(t, err, ReasonShapeMismatch)
				assert.Equal(t, "$.x", de.Path)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, obj.Int("x"))
		})
	}
}

func TestDecode_RequiredFields(t *testing.T) {
	de := requireReason(t, func() error { _, err := Decode([]byte(`{"x":1}`), pointShape); return err }(), ReasonShapeMismatch)
	assert.Equal(t, "$.y", de.Path)

	de = requireReason(t, func() error { _, err := Decode([]byte(`{"x":1,"y":null}`), pointShape); return err }(), ReasonShapeMismatch)
	assert.Equal(t, "$.y", de.Path)
	assert.Contains(t, de.Error(), "null")
}

func TestDecode_OptionalFields(t *testing.T) {
	obj, err := Decode([]byte(`{"name":"p","points":[]}`), pathShape)
	require.NoError(t, err)

	assert.NotNil(t, obj.Array("tags"), "absent optional array decodes as empty")
	assert.Empty(t, obj.Array("tags"))
	assert.False(t, obj.Has("weight"))

	obj, err = Decode([]byte(`{"name":"p","points":[],"tags":null,"weight":null}`), pathShape)
	require.NoError(t, err)
	assert.Empty(t, obj.Array("tags"))
	assert.False(t, obj.Has("weight"))

	// Present optional fields are still type checked.
	_, err = Decode([]byte(`{"name":"p","points":[],"weight":"heavy"}`), pathShape)
	requireReason(t, err, ReasonShapeMismatch)
}

func TestDecode_NestedValues(t *testing.T) {
	payload := `{
		"name": "triangle",
		"points": [{"x":0,"y":0},{"x":4,"y":0,"label":"b"},{"x":0,"y":3.0}],
		"tags": ["closed", "small"],
		"weight": 2.5,
		"closed": true,
		"meta": {"n": 1, "f": 1.5, "list": [1, "a"]}
	}`

	obj, err := Decode([]byte(payload), pathShape)
	require.NoError(t, err)

	points := obj.Objects("points")
	require.Len(t, points, 3)
	assert.Equal(t, int64(4), points[1].Int("x"))
	assert.Equal(t, "b", points[1].String("label"))
	assert.Equal(t, int64(3), points[2].Int("y"))
	assert.Equal(t, []interface{}{"closed", "small"}, obj.Array("tags"))
	assert.Equal(t, 2.5, obj.Float("weight"))
	assert.True(t, obj.Bool("closed"))

	meta := obj.Object("meta")
	assert.Equal(t, int64(1), meta["n"])
	assert.Equal(t, 1.5, meta["f"])
	assert.Equal(t, []interface{}{int64(1), "a"}, meta["list"])
}

func TestDecode_NestedMismatchPath(t *testing.T) {
	_, err := Decode([]byte(`{"name":"p","points":[{"x":1,"y":1},{"x":1}]}`), pathShape)
	de := requireReason(t, err, ReasonShapeMismatch)
	assert.Equal(t, "$.points[1].y", de.Path)

	_, err = Decode([]byte(`{"name":"p","points":3}`), pathShape)
	de = requireReason(t, err, ReasonShapeMismatch)
	assert.Equal(t, "$.points", de.Path)

	_, err = Decode([]byte(`{"name":"p","points":[null]}`), pathShape)
	requireReason(t, err, ReasonShapeMismatch)

	_, err = Decode([]byte(`{"name":"p","points":[1,2]}`), pathShape)
	requireReason(t, err, ReasonShapeMismatch)
}

func TestDecode_StringsAreNotNumbers(t *testing.T) {
	_, err := Decode([]byte(`{"name":7,"points":[]}`), pathShape)
	requireReason(t, err, ReasonShapeMismatch)
}

func TestDecode_TopLevel(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  Reason
	}{
		{"array", `[{"x":1,"y":2}]`, ReasonShapeMismatch},
		{"scalar", `42`, ReasonShapeMismatch},
		{"null", `null`, ReasonShapeMismatch},
		{"truncated", `{"x":1,`, ReasonMalformed},
		{"trailing garbage", `{"x":1,"y":2} {}`, ReasonMalformed},
		{"empty", ``, ReasonMalformed},
		{"not json", `hello`, ReasonMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), pointShape)
			de := requireReason(t, err, tt.reason)
			assert.Equal(t, "Point", de.Shape)
		})
	}
}

func TestDecode_Concurrent(t *testing.T) {
	payload := []byte(`{"x":1,"y":2}`)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				obj, err := Decode(payload, pointShape)
				if err != nil || obj.Int("y") != 2 {
					t.Errorf("concurrent decode: %v %v", obj, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNewShape_Panics(t *testing.T) {
	assert.Panics(t, func() { NewShape("Dup", Required("a", Int()), Optional("a", String())) })
	assert.Panics(t, func() { NewShape("Blank", Required(" ", Int())) })
	assert.Panics(t, func() { ObjectOf(nil) })
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "array<Point>", ArrayOf(ObjectOf(pointShape)).String())
	assert.Equal(t, "integer", Int().String())
	assert.Equal(t, KindArray, ArrayOf(Any()).Kind())
}
