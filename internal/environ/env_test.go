package environ

import (
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"k8s.io/utils/ptr"
)

type envTest[K comparable] struct {
	name     string
	fallback K
	set      *string
	expected K
}

func testEnvGet[K comparable](t *testing.T, tests []envTest[K], fn func(string, K) K) {
	for _, test := range tests {
		if test.set != nil {
			t.Setenv(Prefix+test.name, *test.set)
		}
		assert.Equal(t, test.expected, fn(test.name, test.fallback))
	}
}

func TestGetBool(t *testing.T) {
	tests := []envTest[bool]{
		{name: "BOOL1", fallback: true, set: nil, expected: true},
		{name: "BOOL2", fallback: true, set: ptr.To("false"), expected: false},
		{name: "BOOL3", fallback: false, set: ptr.To("true"), expected: true},
		{name: "BOOL4", fallback: true, set: ptr.To("yes"), expected: false},
	}
	testEnvGet(t, tests, GetBool)
}

func TestGetDuration(t *testing.T) {
	tests := []envTest[time.Duration]{
		{name: "DURATION1", fallback: time.Minute, set: nil, expected: time.Minute},
		{name: "DURATION2", fallback: time.Minute, set: ptr.To("1d"), expected: 24 * time.Hour},
		{name: "DURATION3", fallback: time.Minute, set: ptr.To("30s"), expected: 30 * time.Second},
		{name: "DURATION4", fallback: time.Minute, set: ptr.To("soon"), expected: time.Minute},
	}
	testEnvGet(t, tests, GetDuration)
}

func TestGetInt(t *testing.T) {
	tests := []envTest[int]{
		{name: "INT1", fallback: 10, set: nil, expected: 10},
		{name: "INT2", fallback: 0, set: ptr.To("10"), expected: 10},
		{name: "INT3", fallback: 7, set: ptr.To("ten"), expected: 7},
	}
	testEnvGet(t, tests, GetInt)
}

func TestGetFloat(t *testing.T) {
	tests := []envTest[float64]{
		{name: "FLOAT1", fallback: 0.5, set: nil, expected: 0.5},
		{name: "FLOAT2", fallback: 0, set: ptr.To("0.1"), expected: 0.1},
	}
	testEnvGet(t, tests, GetFloat)
}

func TestGetString(t *testing.T) {
	tests := []envTest[string]{
		{name: "STRING1", fallback: "hello", set: nil, expected: "hello"},
		{name: "STRING2", fallback: "hello", set: ptr.To("world"), expected: "world"},
	}
	testEnvGet(t, tests, GetString)
}

func TestGetByteSize(t *testing.T) {
	tests := []envTest[datasize.ByteSize]{
		{name: "SIZE1", fallback: datasize.MB, set: nil, expected: datasize.MB},
		{name: "SIZE2", fallback: datasize.MB, set: ptr.To("512KB"), expected: 512 * datasize.KB},
		{name: "SIZE3", fallback: datasize.MB, set: ptr.To("lots"), expected: datasize.MB},
	}
	testEnvGet(t, tests, GetByteSize)
}
