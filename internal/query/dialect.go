package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind is the comparison type chosen for a compiled condition
type ValueKind int

const (
	KindNone ValueKind = iota // null checks bind nothing
	KindText
	KindNumeric
	KindBoolean
	KindTime
	KindInteger
)

func (k ValueKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindTime:
		return "time"
	case KindInteger:
		return "integer"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Dialect renders the storage-specific parts of a predicate.
// Property names reaching a Dialect are already validated and safe to embed in a string literal.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the 1-based parameter index
	Placeholder(index int) string
	// Property returns the expression reading a JSON property, cast for kind
	Property(name string, kind ValueKind) string
	// Param wraps a placeholder with the cast matching kind
	Param(placeholder string, kind ValueKind) string
	// PropertyNullCheck tests whether a property is absent (or present when notNull)
	PropertyNullCheck(name string, notNull bool) string
	// TimeArg converts a UTC time into the value bound for the timestamp column
	TimeArg(t time.Time) any
}

// ClickHouse dialect: positional ? markers, JSONExtract* over a String column
type ClickHouse struct{}

func (ClickHouse) Name() string { return "clickhouse" }

func (ClickHouse) Placeholder(int) string { return "?" }

func (ClickHouse) Property(name string, kind ValueKind) string {
	switch kind {
	case KindNumeric:
		return fmt.Sprintf("JSONExtractFloat(properties, '%s')", chLiteral(name))
	case KindBoolean:
		return fmt.Sprintf("JSONExtractBool(properties, '%s')", chLiteral(name))
	default:
		return fmt.Sprintf("JSONExtractString(properties, '%s')", chLiteral(name))
	}
}

func (ClickHouse) Param(ph string, kind ValueKind) string {
	switch kind {
	case KindNumeric:
		return "toFloat64(" + ph + ")"
	case KindBoolean:
		return "toUInt8(" + ph + ")"
	default:
		return ph
	}
}

func (ClickHouse) PropertyNullCheck(name string, notNull bool) string {
	if notNull {
		return fmt.Sprintf("JSONHas(properties, '%s')", chLiteral(name))
	}
	return fmt.Sprintf("NOT JSONHas(properties, '%s')", chLiteral(name))
}

func (ClickHouse) TimeArg(t time.Time) any { return t.UTC() }

// chLiteral hides '$' from clickhouse-go, which treats $1 as a numeric bind marker
func chLiteral(name string) string {
	return strings.ReplaceAll(name, "$", `\x24`)
}

// Postgres dialect: numbered $n markers over a JSONB column
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(index int) string { return "$" + strconv.Itoa(index) }

func (Postgres) Property(name string, kind ValueKind) string {
	switch kind {
	case KindNumeric:
		return fmt.Sprintf("(properties->>'%s')::numeric", name)
	case KindBoolean:
		return fmt.Sprintf("(properties->>'%s')::boolean", name)
	default:
		return fmt.Sprintf("properties->>'%s'", name)
	}
}

func (Postgres) Param(ph string, kind ValueKind) string {
	switch kind {
	case KindNumeric:
		return ph + "::numeric"
	case KindBoolean:
		return ph + "::boolean"
	default:
		return ph
	}
}

func (Postgres) PropertyNullCheck(name string, notNull bool) string {
	if notNull {
		return fmt.Sprintf("properties->'%s' IS NOT NULL", name)
	}
	return fmt.Sprintf("properties->'%s' IS NULL", name)
}

func (Postgres) TimeArg(t time.Time) any { return t.UTC() }

// SQLiteTimeLayout is fixed width so text ordering matches time ordering
const SQLiteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite dialect: ? markers, json_extract over a TEXT column, timestamps stored as text
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Property(name string, kind ValueKind) string {
	expr := fmt.Sprintf(`json_extract(properties, '$."%s"')`, name)
	switch kind {
	case KindNumeric:
		return "CAST(" + expr + " AS REAL)"
	case KindBoolean:
		return "CAST(" + expr + " AS INTEGER)"
	default:
		return expr
	}
}

func (SQLite) Param(ph string, kind ValueKind) string {
	switch kind {
	case KindNumeric:
		return "CAST(" + ph + " AS REAL)"
	case KindBoolean:
		return "CAST(" + ph + " AS INTEGER)"
	default:
		return ph
	}
}

func (SQLite) PropertyNullCheck(name string, notNull bool) string {
	op := "IS NULL"
	if notNull {
		op = "IS NOT NULL"
	}
	return fmt.Sprintf(`json_type(properties, '$."%s"') %s`, name, op)
}

func (SQLite) TimeArg(t time.Time) any { return t.UTC().Format(SQLiteTimeLayout) }
