package query

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultPageSize applies when the caller sends no usable page size
const DefaultPageSize = 100

// ErrPageOutOfRange means the page starts beyond any representable row offset
var ErrPageOutOfRange = errors.New("page is out of range")

// SelectColumns is the projection every store scans, in order
const SelectColumns = "client_id, instance_id, timestamp, level, message, message_template, properties, event_id, exception_information, raw"

// Page is a 1-based page request
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number to at least 1 and falls back to DefaultPageSize
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of rows skipped before this page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Validate rejects pages whose offset would overflow int
func (p Page) Validate() error {
	if p.Size > 0 && p.Number-1 > math.MaxInt/p.Size {
		return fmt.Errorf("%w: page_number %d with page_size %d", ErrPageOutOfRange, p.Number, p.Size)
	}
	return nil
}

// TotalPages rounds up; zero rows means zero pages
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Plan is a tenant-scoped search and its matching count query.
// Both share Where and Args; only the search binds limit and offset.
type Plan struct {
	Where string
	Args  []any
	Page  Page

	limitPH  string
	offsetPH string
}

// SearchSQL renders the page query against table
func (p *Plan) SearchSQL(table string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(SelectColumns)
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteString(" WHERE ")
	b.WriteString(p.Where)
	b.WriteString(" ORDER BY timestamp DESC LIMIT ")
	b.WriteString(p.limitPH)
	b.WriteString(" OFFSET ")
	b.WriteString(p.offsetPH)
	return b.String()
}

// SearchArgs is Args followed by limit and offset
func (p *Plan) SearchArgs() []any {
	args := make([]any, 0, len(p.Args)+2)
	args = append(args, p.Args...)
	return append(args, p.Page.Size, p.Page.Offset())
}

// CountSQL renders the unpaginated count over the same predicate
func (p *Plan) CountSQL(table string) string {
	return "SELECT count(*) FROM " + table + " WHERE " + p.Where
}

// Planner builds plans for one dialect. It is stateless and safe for concurrent use.
type Planner struct {
	dialect Dialect
}

func NewPlanner(d Dialect) *Planner {
	return &Planner{dialect: d}
}

// Plan scopes conds to the tenant and joins everything with AND.
// The first failing condition is returned as a *ConditionError; an unreachable page as ErrPageOutOfRange.
func (p *Planner) Plan(clientID, instanceID int64, conds []Condition, page Page) (*Plan, error) {
	page = NewPage(page.Number, page.Size)
	if err := page.Validate(); err != nil {
		return nil, err
	}

	compiler := NewCompiler(p.dialect, 1)

	predicates := make([]string, 0, len(conds)+2)
	args := make([]any, 0, len(conds)+2)

	tenant := []Compiled{
		{SQL: "client_id = " + compiler.bind(), Arg: clientID, HasArg: true, Kind: KindInteger},
		{SQL: "instance_id = " + compiler.bind(), Arg: instanceID, HasArg: true, Kind: KindInteger},
	}
	for _, c := range tenant {
		predicates = append(predicates, c.SQL)
		args = append(args, c.Arg)
	}

	for i, cond := range conds {
		compiled, err := compiler.Compile(cond)
		if err != nil {
			return nil, &ConditionError{Index: i, Condition: cond, Err: err}
		}
		predicates = append(predicates, compiled.SQL)
		if compiled.HasArg {
			args = append(args, compiled.Arg)
		}
	}

	plan := &Plan{
		Where: strings.Join(predicates, " AND "),
		Args:  args,
		Page:  page,
	}
	plan.limitPH = compiler.bind()
	plan.offsetPH = compiler.bind()

	return plan, nil
}
