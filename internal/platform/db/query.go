package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Query builds the WHERE clause of a filtered list query together with its
// positional arguments. Every filter is ANDed with the others.
type Query struct {
	from    string
	cols    string
	where   []string
	args    []any
	orderBy string
}

// NewQuery starts a query selecting cols from a table or join expression.
func NewQuery(from, cols string) *Query {
	return &Query{from: from, cols: cols}
}

// Next returns the placeholder index the next argument will take.
func (q *Query) Next() int { return len(q.args) + 1 }

// Where appends a raw clause. Each "?" in clause is replaced by the
// placeholder of the matching arg.
func (q *Query) Where(clause string, args ...any) *Query {
	var b strings.Builder
	n := 0
	for _, r := range clause {
		if r == '?' && n < len(args) {
			fmt.Fprintf(&b, "$%d", q.Next()+n)
			n++
			continue
		}
		b.WriteRune(r)
	}
	q.where = append(q.where, b.String())
	q.args = append(q.args, args...)
	return q
}

// Eq filters column = value.
func (q *Query) Eq(column string, value any) *Query {
	return q.Where(column+" = ?", value)
}

// Search matches term as a case-insensitive substring of any of columns.
// An empty term adds nothing.
func (q *Query) Search(term string, columns ...string) *Query {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return q
	}
	idx := q.Next()
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", col, idx)
	}
	q.where = append(q.where, "("+strings.Join(parts, " OR ")+")")
	q.args = append(q.args, "%"+escapeLike(term)+"%")
	return q
}

// OrderBy sets the full ORDER BY clause, keyword included.
func (q *Query) OrderBy(clause string) *Query {
	q.orderBy = clause
	return q
}

func (q *Query) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *Query) CountSQL() string {
	return "SELECT COUNT(*) FROM " + q.from + q.whereSQL()
}

// GroupSQL returns "SELECT cols FROM ... GROUP BY groupBy" over the same
// filters.
func (q *Query) GroupSQL(cols, groupBy string) string {
	return "SELECT " + cols + " FROM " + q.from + q.whereSQL() + " GROUP BY " + groupBy
}

func (q *Query) Args() []any {
	return q.args
}

// SelectSQL returns the unpaged data query.
func (q *Query) SelectSQL() string {
	sql := "SELECT " + q.cols + " FROM " + q.from + q.whereSQL()
	if q.orderBy != "" {
		sql += " " + q.orderBy
	}
	return sql
}

// DataSQL returns the data query with LIMIT and OFFSET placeholders.
func (q *Query) DataSQL() string {
	return fmt.Sprintf("%s LIMIT $%d OFFSET $%d", q.SelectSQL(), q.Next(), q.Next()+1)
}

// DataArgs returns the filter args followed by limit and offset.
func (q *Query) DataArgs(limit, offset int) []any {
	out := make([]any, 0, len(q.args)+2)
	out = append(out, q.args...)
	return append(out, limit, offset)
}

// Page runs the count and the paged data query on conn, calling scan for each
// row. It returns the total number of matching rows.
func (q *Query) Page(ctx context.Context, conn Querier, limit, offset int, scan func(pgx.Rows) error) (int, error) {
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return 0, err
	}
	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return 0, err
		}
	}
	return total, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
