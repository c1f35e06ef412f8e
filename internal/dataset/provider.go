package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Provider serves the cleaned order table. The table is loaded from SQLite
// exactly once per process and is read-only afterwards, so it is safe to
// share across concurrent pipeline invocations without locking.
type Provider struct {
	dbPath string
	logger *zap.Logger

	once  sync.Once
	table *Table
	err   error
}

// NewProvider creates a provider reading from the orders table at dbPath.
func NewProvider(dbPath string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{dbPath: dbPath, logger: logger}
}

// Load returns the order table, reading it from disk on first use.
// Every call within a process returns the same table.
func (p *Provider) Load(ctx context.Context) (*Table, error) {
	p.once.Do(func() {
		p.table, p.err = p.load(ctx)
		if p.err == nil {
			p.logger.Info("dataset loaded",
				zap.String("path", p.dbPath),
				zap.Int("rows", p.table.NumRows()),
				zap.Int("columns", len(p.table.Columns())))
		}
	})
	return p.table, p.err
}

func (p *Provider) load(ctx context.Context) (*Table, error) {
	if _, err := os.Stat(p.dbPath); err != nil {
		return nil, fmt.Errorf("processed dataset not found at %s (run `weaver dataset prepare`): %w", p.dbPath, err)
	}

	db, err := sql.Open("sqlite", p.dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	defer db.Close()

	names := make([]string, len(orderColumns))
	for i, c := range orderColumns {
		names[i] = c.Name
	}

	rows, err := db.QueryContext(ctx, "SELECT "+joinColumns(names)+" FROM orders")
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var data [][]any
	for rows.Next() {
		scan := make([]any, len(orderColumns))
		ptrs := make([]any, len(orderColumns))
		for i := range scan {
			ptrs[i] = &scan[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		row := make([]any, len(orderColumns))
		for i, col := range orderColumns {
			row[i] = decodeStoredCell(scan[i], col.Kind)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return New(names, data)
}

func joinColumns(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// decodeStoredCell maps SQLite values back to the table's cell types.
func decodeStoredCell(v any, kind string) any {
	if v == nil {
		return nil
	}
	switch kind {
	case "bool":
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case "date":
		if s, ok := v.(string); ok {
			if t, ok := parseDate(s); ok {
				return t
			}
			return s
		}
	case "text":
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	case "real":
		// Integral REALs may come back as int64 from SQLite's type affinity.
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	}
	switch x := v.(type) {
	case []byte:
		return string(x)
	default:
		return x
	}
}
