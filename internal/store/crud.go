package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Row is one record returned by Execute, keyed by column name.
type Row map[string]any

// Query is a single CRUD request against one table. Method is one of get,
// post, put or delete.
type Query struct {
	Table       string
	Method      string
	PathParams  map[string]any
	QueryParams map[string]any
	Body        map[string]any
}

// Result is what Execute returns. DeletedCount and Message are only set for
// delete.
type Result struct {
	Rows         []Row
	DeletedCount int64
	Message      string
}

// Value shapes r the way it is returned to a client: the delete summary, the
// only row, or the list of rows.
func (r *Result) Value() any {
	switch {
	case r.Message != "":
		return map[string]any{"deleted_count": r.DeletedCount, "message": r.Message}
	case len(r.Rows) == 1:
		return r.Rows[0]
	default:
		return r.Rows
	}
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identifierRe.MatchString(name) {
		return "", fmt.Errorf("%w: invalid identifier %q", ErrBadRequest, name)
	}
	return `"` + name + `"`, nil
}

// conditions renders "col = ?" terms for params in column order.
func conditions(params map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(params))
	for k := range params {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	terms := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		q, err := quoteIdent(c)
		if err != nil {
			return nil, nil, err
		}
		terms = append(terms, q+" = ?")
		args = append(args, params[c])
	}
	return terms, args, nil
}

func combine(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func whereClause(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(terms, " AND ")
}

// Execute runs q against its table. get returns ErrNotFound when nothing
// matches; post and put require a body and put also requires path params;
// put and delete return ErrNotFound when no row was affected.
func (s *SQLiteStore) Execute(ctx context.Context, q Query) (*Result, error) {
	table, err := quoteIdent(q.Table)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(q.Method) {
	case "post":
		if len(q.Body) == 0 {
			return nil, fmt.Errorf("%w: no data provided for POST operation", ErrBadRequest)
		}
		terms, args, err := conditions(q.Body)
		if err != nil {
			return nil, err
		}
		cols := make([]string, len(terms))
		for i, t := range terms {
			cols[i] = strings.TrimSuffix(t, " = ?")
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *", table, strings.Join(cols, ", "), placeholders)
		rows, err := s.queryRows(ctx, stmt, args...)
		if err != nil {
			return nil, err
		}
		return &Result{Rows: rows}, nil

	case "get":
		terms, args, err := conditions(combine(q.PathParams, q.QueryParams))
		if err != nil {
			return nil, err
		}
		rows, err := s.queryRows(ctx, "SELECT * FROM "+table+whereClause(terms), args...)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: no records found", ErrNotFound)
		}
		return &Result{Rows: rows}, nil

	case "put":
		if len(q.Body) == 0 {
			return nil, fmt.Errorf("%w: no data provided for PUT operation", ErrBadRequest)
		}
		if len(q.PathParams) == 0 {
			return nil, fmt.Errorf("%w: no parameters provided for PUT operation", ErrBadRequest)
		}
		sets, setArgs, err := conditions(q.Body)
		if err != nil {
			return nil, err
		}
		filters, filterArgs, err := conditions(q.PathParams)
		if err != nil {
			return nil, err
		}
		stmt := fmt.Sprintf("UPDATE %s SET %s%s RETURNING *", table, strings.Join(sets, ", "), whereClause(filters))
		rows, err := s.queryRows(ctx, stmt, append(setArgs, filterArgs...)...)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: no records found to update", ErrNotFound)
		}
		return &Result{Rows: rows[:1]}, nil

	case "delete":
		terms, args, err := conditions(combine(q.PathParams, q.QueryParams))
		if err != nil {
			return nil, err
		}
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+whereClause(terms), args...)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: no records found to delete", ErrNotFound)
		}
		return &Result{DeletedCount: n, Message: fmt.Sprintf("%d records deleted successfully", n)}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported HTTP method %q", ErrBadRequest, q.Method)
	}
}

func (s *SQLiteStore) queryRows(ctx context.Context, stmt string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return out, nil
}
