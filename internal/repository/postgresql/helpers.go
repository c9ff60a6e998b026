package postgresql

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/pagination"
)

// updateColumns writes the non-empty updates map to the row with id and returns the
// number of affected rows. Columns are sorted so the statement text is stable.
func updateColumns(ctx context.Context, q database.Querier, table, id string, updates map[string]interface{}, extraWhere string) (int64, error) {
	if len(updates) == 0 {
		return 1, nil
	}
	updates["updated_at"] = time.Now()

	cols := make([]string, 0, len(updates))
	for col := range updates {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	setClauses := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i+1))
		args = append(args, updates[col])
	}
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d%s", table, strings.Join(setClauses, ", "), len(args), extraWhere)
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// nullable maps an explicitly empty string to NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// conditions collects WHERE fragments with numbered placeholders.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(format string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(format, len(c.args)))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause with its args.
func (c *conditions) page(page, limit int) (string, []interface{}) {
	args := append(append([]interface{}{}, c.args...), limit, pagination.Offset(page, limit))
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(c.args)+1, len(c.args)+2), args
}

// placeholders renders "$from, ..., $to".
func placeholders(from, to int) string {
	parts := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		parts = append(parts, fmt.Sprintf("$%d", i))
	}
	return strings.Join(parts, ", ")
}
