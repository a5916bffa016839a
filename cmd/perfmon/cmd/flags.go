package cmd

import (
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	"github.com/spf13/pflag"

	"github.com/sevadaan/perfmon/internal/config"
	"github.com/sevadaan/perfmon/internal/environ"
)

// byteSizeValue is a pflag.Value accepting human readable sizes.
type byteSizeValue struct {
	v *datasize.ByteSize
}

func (b byteSizeValue) String() string {
	if b.v == nil {
		return "0B"
	}
	return b.v.HR()
}

func (b byteSizeValue) Set(s string) error {
	v, err := config.ParseSize(s)
	if err != nil {
		return err
	}
	*b.v = v
	return nil
}

func (byteSizeValue) Type() string { return "size" }

func byteSizeVar(flags *pflag.FlagSet, p *datasize.ByteSize, name string, value datasize.ByteSize, usage string) {
	*p = value
	flags.Var(byteSizeValue{p}, name, usage)
}

// durationValue is a pflag.Value accepting day and week units on top of Go
// durations.
type durationValue struct {
	v *time.Duration
}

func (d durationValue) String() string {
	if d.v == nil {
		return "0s"
	}
	return d.v.String()
}

func (d durationValue) Set(s string) error {
	v, err := config.ParseDuration(s)
	if err != nil {
		return err
	}
	*d.v = v
	return nil
}

func (durationValue) Type() string { return "duration" }

func durationVar(flags *pflag.FlagSet, p *time.Duration, name string, value time.Duration, usage string) {
	*p = value
	flags.Var(durationValue{p}, name, usage)
}

const envAnnotation = "perfmon_env"

// envKey is the environment variable suffix seeding the default of a flag.
func envKey(flag string) string {
	return strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// bindEnv records key as the environment variable suffix of flag when it
// differs from envKey(flag).
func bindEnv(flags *pflag.FlagSet, flag, key string) {
	_ = flags.SetAnnotation(flag, envAnnotation, []string{key})
}

func flagEnvKey(flags *pflag.FlagSet, name string) string {
	if f := flags.Lookup(name); f != nil {
		if keys := f.Annotations[envAnnotation]; len(keys) > 0 {
			return keys[0]
		}
	}
	return envKey(name)
}

// overlay applies configuration file values to flags that were set neither on
// the command line nor through the environment. Empty values are skipped.
func overlay(flags *pflag.FlagSet, values map[string]string) error {
	for name, value := range values {
		if value == "" || flags.Lookup(name) == nil || flags.Changed(name) {
			continue
		}
		if _, ok := os.LookupEnv(environ.Prefix + flagEnvKey(flags, name)); ok {
			continue
		}
		if err := flags.Set(name, value); err != nil {
			return errors.WrapIfWithDetails(err, "invalid configuration value", "flag", name)
		}
	}
	return nil
}
