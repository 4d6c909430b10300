package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrInvalidEnumValue is returned when a string does not belong to the fixed
// set of an enumeration.
var ErrInvalidEnumValue = errors.New("invalid enum value")

// Sex is the stored code of the account's sex.
type Sex int8

const (
	SexFemale Sex = 0
	SexMale   Sex = 1
)

var sexNames = [...]string{SexFemale: "f", SexMale: "m"}

// ParseSex maps the literal "f"/"m" to its code.
func ParseSex(s string) (Sex, error) {
	for code, name := range sexNames {
		if name == s {
			return Sex(code), nil
		}
	}
	return 0, fmt.Errorf("%w: sex %q", ErrInvalidEnumValue, s)
}

func (s Sex) String() string {
	if s < 0 || int(s) >= len(sexNames) {
		return fmt.Sprintf("Sex(%d)", int8(s))
	}
	return sexNames[s]
}

// Value stores the code, not the name.
func (s Sex) Value() (driver.Value, error) { return int64(s), nil }

// Status is the stored code of the account's relationship status.
type Status int8

const (
	StatusFree        Status = 0
	StatusTaken       Status = 1
	StatusComplicated Status = 2
)

var statusNames = [...]string{
	StatusFree:        "свободны",
	StatusTaken:       "заняты",
	StatusComplicated: "всё сложно",
}

// ParseStatus maps one of the three status literals to its code.
func ParseStatus(s string) (Status, error) {
	for code, name := range statusNames {
		if name == s {
			return Status(code), nil
		}
	}
	return 0, fmt.Errorf("%w: status %q", ErrInvalidEnumValue, s)
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int8(s))
	}
	return statusNames[s]
}

func (s Status) Value() (driver.Value, error) { return int64(s), nil }
