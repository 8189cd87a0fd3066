package schema

import (
	"errors"
	"fmt"
)

// ErrSchemaViolation matches every configuration error found while
// composing schemas or validating index declarations.
var ErrSchemaViolation = errors.New("schema violation")

type ViolationError struct {
	Entity    string
	Attribute string
	Reason    string
}

func (e *ViolationError) Error() string {
	switch {
	case e.Entity != "" && e.Attribute != "":
		return fmt.Sprintf("schema violation: %s.%s: %s", e.Entity, e.Attribute, e.Reason)
	case e.Entity != "":
		return fmt.Sprintf("schema violation: %s: %s", e.Entity, e.Reason)
	case e.Attribute != "":
		return fmt.Sprintf("schema violation: %s: %s", e.Attribute, e.Reason)
	}
	return "schema violation: " + e.Reason
}

func (e *ViolationError) Unwrap() error {
	return ErrSchemaViolation
}

// Violations returns every *ViolationError contained in err.
func Violations(err error) []*ViolationError {
	var out []*ViolationError
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if v, ok := err.(*ViolationError); ok {
			out = append(out, v)
			return
		}
		switch e := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(e.Unwrap())
		}
	}
	walk(err)
	return out
}

func withEntity(err error, entity string) error {
	for _, v := range Violations(err) {
		if v.Entity == "" {
			v.Entity = entity
		}
	}
	return err
}
