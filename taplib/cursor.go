package taplib

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Cursor is the live result cursor abstraction the orchestrator drives.
// A cursor is not safe for concurrent use: exactly one logical thread of
// control consumes it at a time.
type Cursor interface {
	// Execute runs the query and positions the cursor before the first row.
	Execute(ctx context.Context, query string, params ...any) error
	// FetchOne returns the next row or nil when the cursor is exhausted.
	FetchOne() ([]any, error)
	// FetchMany returns up to n next rows; an empty result means the
	// cursor is exhausted.
	FetchMany(n int) ([][]any, error)
	// Describe renders the statement with parameters substituted, for
	// logging only.
	Describe(query string, params ...any) string
	Close() error
}

// SQLCursor drives a database/sql connection pool. Driver-native values
// are passed through as scanned; the row transcoder owns canonicalization.
type SQLCursor struct {
	db      *sql.DB
	rows    *sql.Rows
	columns int
}

func NewSQLCursor(db *sql.DB) *SQLCursor {
	return &SQLCursor{db: db}
}

func (c *SQLCursor) Execute(ctx context.Context, query string, params ...any) error {
	if c.rows != nil {
		_ = c.rows.Close()
		c.rows = nil
	}
	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return SourceError.Wrap(err, "query failed")
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return SourceError.Wrap(err, "can't read result columns")
	}
	c.rows = rows
	c.columns = len(columns)
	return nil
}

func (c *SQLCursor) FetchOne() ([]any, error) {
	if c.rows == nil {
		return nil, SourceError.New("cursor is not executed")
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, SourceError.Wrap(err, "fetch failed")
		}
		return nil, nil
	}
	values := make([]any, c.columns)
	holders := make([]any, c.columns)
	for i := range values {
		holders[i] = &values[i]
	}
	if err := c.rows.Scan(holders...); err != nil {
		return nil, SourceError.Wrap(err, "scan failed")
	}
	return values, nil
}

func (c *SQLCursor) FetchMany(n int) ([][]any, error) {
	rows := make([][]any, 0, n)
	for len(rows) < n {
		row, err := c.FetchOne()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *SQLCursor) Describe(query string, params ...any) string {
	rendered := query
	for _, param := range params {
		rendered = strings.Replace(rendered, "?", fmt.Sprintf("%v", param), 1)
	}
	return rendered
}

func (c *SQLCursor) Close() error {
	if c.rows != nil {
		err := c.rows.Close()
		c.rows = nil
		return err
	}
	return nil
}
