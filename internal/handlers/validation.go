package handlers

import (
	"errors"
	"fmt"

	"github.com/SteelMorgan/serilog-dashboard/internal/query"
)

// ValidationError represents a validation error with instructions
type ValidationError struct {
	Field        string   `json:"field"`
	Message      string   `json:"message"`
	Instructions []string `json:"instructions,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateTenant requires both tenant identifiers
func ValidateTenant(clientID, instanceID *int64) error {
	if clientID == nil {
		return &ValidationError{
			Field:   "client_id",
			Message: "client_id is required",
			Instructions: []string{
				"Send the numeric client id the events were ingested under",
			},
		}
	}
	if instanceID == nil {
		return &ValidationError{
			Field:   "instance_id",
			Message: "instance_id is required",
			Instructions: []string{
				"Send the numeric instance id the events were ingested under",
			},
		}
	}
	return nil
}

// conditionValidationError explains why a filter condition was rejected
func conditionValidationError(err *query.ConditionError) *ValidationError {
	field := fmt.Sprintf("conditions[%d]", err.Index)

	var instructions []string
	switch {
	case errors.Is(err, query.ErrEmptyField):
		instructions = []string{"Set 'field' to a column name or a property name"}
	case errors.Is(err, query.ErrUnsupportedOperator):
		instructions = []string{
			"Supported operators: =, !=, <>, <, <=, >, >=, LIKE, NOT LIKE, IS NULL, IS NOT NULL",
			"LIKE and NOT LIKE apply to text columns and properties only",
		}
	case errors.Is(err, query.ErrInvalidPropertyName):
		instructions = []string{
			"Property names may contain letters, digits, '_', '.', '-', '@' and '$'",
		}
	case errors.Is(err, query.ErrInvalidValue):
		instructions = []string{
			"timestamp expects RFC 3339 (2024-01-01T00:00:00Z), '2024-01-01 00:00:00' or '2024-01-01'",
			"client_id and instance_id expect integers",
		}
	}

	return &ValidationError{
		Field:        field,
		Message:      err.Err.Error(),
		Instructions: instructions,
	}
}

func pageValidationError(err error) *ValidationError {
	return &ValidationError{
		Field:   "page_number",
		Message: err.Error(),
		Instructions: []string{
			"Lower page_number or page_size; (page_number - 1) * page_size must fit a 64-bit row offset",
		},
	}
}
