package options

import (
	"fmt"
	"strings"
)

// UnknownOptionError reports an assignment to an undeclared option.
type UnknownOptionError struct {
	Option string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown option: %s", e.Option)
}

// CoercionError reports a raw value that does not fit the declared type.
type CoercionError struct {
	Option   string
	Expected Type
	Value    string
	Allowed  []string // populated for enum options
}

func (e *CoercionError) Error() string {
	if e.Expected == TypeEnum {
		return fmt.Sprintf("invalid value %q for %s: expected one of %s",
			e.Value, e.Option, strings.Join(e.Allowed, ", "))
	}
	return fmt.Sprintf("invalid value %q for %s: expected %s", e.Value, e.Option, e.Expected)
}

// MissingRequiredError reports every required option still unset.
type MissingRequiredError struct {
	Options []string
}

func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("missing required options: %s", strings.Join(e.Options, ", "))
}
