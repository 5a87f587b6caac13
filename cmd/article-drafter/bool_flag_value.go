package articledrafter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// optionalBool is a flag value that accepts a bare flag (--skip-failed) or an
// explicit choice (--skip-failed=no) and remembers whether it was given.
type optionalBool struct {
	value bool
	set   bool
}

func (flagValue *optionalBool) String() string {
	if flagValue == nil {
		return ""
	}
	return strconv.FormatBool(flagValue.value)
}

func (flagValue *optionalBool) Set(input string) error {
	boolValue, ok := parseBoolChoice(input)
	if !ok {
		return fmt.Errorf("invalid boolean value %q", input)
	}
	flagValue.value = boolValue
	flagValue.set = true
	return nil
}

func (flagValue *optionalBool) Type() string {
	return "bool"
}

// resolve returns the flag value when given and fallback otherwise.
func (flagValue *optionalBool) resolve(fallback bool) bool {
	if flagValue.set {
		return flagValue.value
	}
	return fallback
}

func registerOptionalBool(flags *pflag.FlagSet, target *optionalBool, name string, usage string) {
	flags.Var(target, name, usage)
	if flag := flags.Lookup(name); flag != nil {
		flag.NoOptDefVal = "true"
		flag.DefValue = "false"
	}
}

func parseBoolChoice(input string) (bool, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		trimmed = "true"
	}
	switch strings.ToLower(trimmed) {
	case "true", "t", "1", "yes", "y", "on":
		return true, true
	case "false", "f", "0", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
