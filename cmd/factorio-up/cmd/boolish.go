package cmd

import (
	"fmt"
	"strconv"
	"strings"
)

// boolish is a flag value that always takes an argument, so "--init-map true"
// and "--init-map=yes" both work the way existing entrypoint scripts use them.
type boolish bool

func (b *boolish) String() string {
	return strconv.FormatBool(bool(*b))
}

func (b *boolish) Set(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "on", "1":
		*b = true
	case "false", "no", "n", "off", "0":
		*b = false
	default:
		return fmt.Errorf("invalid boolean value %q", s)
	}

	return nil
}

func (b *boolish) Type() string {
	return "boolean"
}
