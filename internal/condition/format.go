package condition

import (
	"strconv"
	"strings"
)

// FormatLog expands a logpoint's format string, replacing each {expr}
// placeholder with the decimal value of expr evaluated against env
// (spec §8 scenario 2: log "A={A}" with A=0x42 emits "A=66").
func FormatLog(format string, env *Environment) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(format) {
		open := strings.IndexByte(format[i:], '{')
		if open < 0 {
			b.WriteString(format[i:])
			break
		}
		b.WriteString(format[i : i+open])
		start := i + open + 1
		close := strings.IndexByte(format[start:], '}')
		if close < 0 {
			b.WriteString(format[i+open:])
			break
		}
		expr := format[start : start+close]
		v, err := EvaluateInt(expr, env)
		if err != nil {
			return "", err
		}
		b.WriteString(strconv.FormatInt(v, 10))
		i = start + close + 1
	}
	return b.String(), nil
}
