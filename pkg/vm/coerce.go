package vm

import (
	"strconv"
	"strings"

	"github.com/kristofer/vex/pkg/bytecode"
)

// ToDisplayString renders v the way the language itself prints values: the
// teacher's GoString is close but tuned for debugger/test output rather
// than script-visible behavior, so PRINT, the `str` native and the
// `joinStr` native behind string interpolation all route through here
// instead. ADD on two strings concatenates them directly and does not
// coerce other values to strings.
func ToDisplayString(v bytecode.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsString():
		return v.AsString().Chars
	default:
		return v.GoString()
	}
}

// formatNumber renders a float64 in strconv's shortest round-tripping 'g'
// form: integral values print without a trailing ".0", and values whose
// decimal exponent is below -4 or at least 6 print in exponent form
// (1000000 prints as "1e+06").
func formatNumber(n float64) string {
	s := strconv.FormatFloat(n, 'g', -1, 64)
	if strings.ContainsAny(s, "eE") {
		return s
	}
	if !strings.Contains(s, ".") {
		return s
	}
	return s
}

// ToNumber implements the `number` native's coercion rule: strings parse
// as decimal literals, bools map to 1/0, nil and non-numeric strings fail.
func ToNumber(v bytecode.Value) (float64, bool) {
	switch {
	case v.IsNumber():
		return v.AsNumber(), true
	case v.IsBool():
		if v.AsBool() {
			return 1, true
		}
		return 0, true
	case v.IsString():
		n, err := strconv.ParseFloat(strings.TrimSpace(v.AsString().Chars), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ToBool implements the `bool` native's coercion rule: the same truthiness
// every JUMP_IF_FALSE/NOT already uses (spec's implicit truthiness rule),
// exposed as an explicit conversion.
func ToBool(v bytecode.Value) bool { return bytecode.Truth(v) }
