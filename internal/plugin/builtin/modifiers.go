package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mii-cds/cdstoolbox/internal/plugin"
)

func init() {
	plugin.RegisterModifier("firstnchars", firstNChars)
	plugin.RegisterModifier("upper", upper)
	plugin.RegisterModifier("lower", lower)
}

// firstNChars truncates value to its first n characters, n given by param.
// Ported from FirstNCharModifier.modify.
func firstNChars(param, value string) (string, error) {
	param = strings.ReplaceAll(param, " ", "")
	if !digitsOnly(param) {
		return "", fmt.Errorf("firstnchars: param must be an integer, got %q", param)
	}
	n, err := strconv.Atoi(param)
	if err != nil {
		return "", fmt.Errorf("firstnchars: %w", err)
	}
	v := strings.ReplaceAll(value, " ", "")
	if n > len(v) {
		n = len(v)
	}
	return v[:n], nil
}

func upper(_ string, value string) (string, error) {
	return strings.ToUpper(value), nil
}

func lower(_ string, value string) (string, error) {
	return strings.ToLower(value), nil
}
