// Package environ reads typed values from environment variables, falling back
// to a default when the variable is unset or cannot be parsed. It is used to
// seed CLI flag defaults so every flag can also be set as PERFMON_<NAME>.
package environ

import (
	"os"
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
	"k8s.io/kube-openapi/pkg/validation/strfmt"
)

// Prefix is prepended to every key looked up by this package.
const Prefix = "PERFMON_"

func lookup[T any](key string, fallback T, parse func(string) (T, error)) T {
	value, ok := os.LookupEnv(Prefix + key)
	if !ok {
		return fallback
	}
	v, err := parse(value)
	if err != nil {
		return fallback
	}
	return v
}

func GetString(key, fallback string) string {
	return lookup(key, fallback, func(s string) (string, error) { return s, nil })
}

func GetInt(key string, fallback int) int {
	return lookup(key, fallback, strconv.Atoi)
}

func GetFloat(key string, fallback float64) float64 {
	return lookup(key, fallback, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetBool only treats the literal "true" as true, any other value is false.
func GetBool(key string, fallback bool) bool {
	return lookup(key, fallback, func(s string) (bool, error) { return s == "true", nil })
}

// GetDuration accepts Go durations as well as day/week units such as "1d".
func GetDuration(key string, fallback time.Duration) time.Duration {
	return lookup(key, fallback, strfmt.ParseDuration)
}

// GetByteSize accepts human readable sizes such as "512KB" or "4MB".
func GetByteSize(key string, fallback datasize.ByteSize) datasize.ByteSize {
	return lookup(key, fallback, datasize.ParseString)
}
