package query

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/grafana/regexp"
)

var (
	ErrEmptyField          = errors.New("field is required")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidPropertyName = errors.New("invalid property name")
	ErrInvalidValue        = errors.New("invalid value")
)

// Condition is one caller-supplied filter
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// ConditionError reports why a condition could not be compiled
type ConditionError struct {
	Index     int
	Condition Condition
	Err       error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %d (%s %s): %v", e.Index, e.Condition.Field, e.Condition.Operator, e.Err)
}

func (e *ConditionError) Unwrap() error { return e.Err }

// Compiled is a predicate fragment with at most one bound argument
type Compiled struct {
	SQL        string
	Arg        any
	HasArg     bool
	IsProperty bool
	Kind       ValueKind
}

// columnKinds is the allow-list of physical columns, keyed by canonical name
var columnKinds = map[string]ValueKind{
	"client_id":             KindInteger,
	"instance_id":           KindInteger,
	"timestamp":             KindTime,
	"level":                 KindText,
	"message":               KindText,
	"message_template":      KindText,
	"event_id":              KindText,
	"exception_information": KindText,
	"raw":                   KindText,
}

var operators = map[string]bool{
	"=":           true,
	"!=":          true,
	"<>":          true,
	"<":           true,
	"<=":          true,
	">":           true,
	">=":          true,
	"LIKE":        true,
	"NOT LIKE":    true,
	"IS NULL":     true,
	"IS NOT NULL": true,
}

var propertyNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.\-@$]+$`)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Compiler turns conditions into predicate fragments for one query.
// Parameter indices keep increasing across Compile calls; use a fresh Compiler per request.
type Compiler struct {
	dialect Dialect
	next    int
}

// NewCompiler creates a compiler whose first bound parameter gets index first
func NewCompiler(d Dialect, first int) *Compiler {
	if first < 1 {
		first = 1
	}
	return &Compiler{dialect: d, next: first}
}

// NextIndex is the index the next bound parameter will receive
func (c *Compiler) NextIndex() int {
	return c.next
}

// Compile validates cond and renders its predicate. Values are always bound, never rendered.
func (c *Compiler) Compile(cond Condition) (Compiled, error) {
	field := strings.TrimSpace(cond.Field)
	if field == "" {
		return Compiled{}, ErrEmptyField
	}

	op := NormalizeOperator(cond.Operator)
	if !operators[op] {
		return Compiled{}, fmt.Errorf("%w: %q", ErrUnsupportedOperator, cond.Operator)
	}

	if kind, ok := columnKinds[strings.ToLower(field)]; ok {
		return c.compileColumn(strings.ToLower(field), op, kind, cond.Value)
	}

	if !propertyNamePattern.MatchString(field) {
		return Compiled{}, fmt.Errorf("%w: %q", ErrInvalidPropertyName, field)
	}
	return c.compileProperty(field, op, cond.Value), nil
}

func (c *Compiler) compileColumn(column, op string, kind ValueKind, value string) (Compiled, error) {
	if isNullCheck(op) {
		return Compiled{SQL: column + " " + op, Kind: KindNone}, nil
	}

	var arg any
	switch kind {
	case KindTime:
		if isLike(op) {
			return Compiled{}, fmt.Errorf("%w: %s does not support %s", ErrUnsupportedOperator, column, op)
		}
		ts, err := ParseTime(value)
		if err != nil {
			return Compiled{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, column, err)
		}
		arg = c.dialect.TimeArg(ts)
	case KindInteger:
		if isLike(op) {
			return Compiled{}, fmt.Errorf("%w: %s does not support %s", ErrUnsupportedOperator, column, op)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return Compiled{}, fmt.Errorf("%w: %s must be an integer", ErrInvalidValue, column)
		}
		arg = n
	default:
		arg = value
	}

	return Compiled{
		SQL:    fmt.Sprintf("%s %s %s", column, op, c.bind()),
		Arg:    arg,
		HasArg: true,
		Kind:   kind,
	}, nil
}

func (c *Compiler) compileProperty(name, op, value string) Compiled {
	if isNullCheck(op) {
		return Compiled{
			SQL:        c.dialect.PropertyNullCheck(name, op == "IS NOT NULL"),
			IsProperty: true,
			Kind:       KindNone,
		}
	}

	kind, arg := InferKind(op, value)
	return Compiled{
		SQL:        fmt.Sprintf("%s %s %s", c.dialect.Property(name, kind), op, c.dialect.Param(c.bind(), kind)),
		Arg:        arg,
		HasArg:     true,
		IsProperty: true,
		Kind:       kind,
	}
}

func (c *Compiler) bind() string {
	ph := c.dialect.Placeholder(c.next)
	c.next++
	return ph
}

// InferKind decides how a property is compared from the literal alone.
// LIKE is always textual; then finite decimal numbers, then true/false, then text.
// Numbers are bound as the trimmed literal so the store parses them at full precision.
func InferKind(op, value string) (ValueKind, any) {
	if isLike(op) {
		return KindText, value
	}
	trimmed := strings.TrimSpace(value)
	if isDecimal(trimmed) {
		return KindNumeric, trimmed
	}
	if lower := strings.ToLower(trimmed); lower == "true" || lower == "false" {
		return KindBoolean, lower == "true"
	}
	return KindText, value
}

// NormalizeOperator upper-cases op and collapses inner whitespace
func NormalizeOperator(op string) string {
	return strings.ToUpper(strings.Join(strings.Fields(op), " "))
}

// ParseTime accepts RFC 3339 and the common space-separated and date-only forms.
// Values without an offset are taken as UTC.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date-time", value)
}

// isDecimal reports whether s is a finite number every store can cast from text.
// Hex floats and digit separators parse in Go but not in SQL.
func isDecimal(s string) bool {
	if strings.ContainsAny(s, "xX_") {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func isNullCheck(op string) bool {
	return op == "IS NULL" || op == "IS NOT NULL"
}

func isLike(op string) bool {
	return op == "LIKE" || op == "NOT LIKE"
}
