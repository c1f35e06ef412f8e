package dataset

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	_ "modernc.org/sqlite"
)

// rawRenameMap maps DataCo CSV headers to clean snake_case names.
var rawRenameMap = map[string]string{
	"Type":                          "payment_type",
	"Days for shipping (real)":      "days_for_shipping_real",
	"Days for shipment (scheduled)": "days_for_shipment_scheduled",
	"Benefit per order":             "benefit_per_order",
	"Sales per customer":            "sales_per_customer",
	"Delivery Status":               "delivery_status",
	"Late_delivery_risk":            "late_delivery_risk",
	"Category Name":                 "category_name",
	"Customer Segment":              "customer_segment",
	"Department Name":               "department_name",
	"Market":                        "market",
	"Order City":                    "order_city",
	"Order Country":                 "order_country",
	"order date (DateOrders)":       "order_date",
	"Order Id":                      "order_id",
	"Order Item Discount":           "order_item_discount",
	"Order Item Discount Rate":      "order_item_discount_rate",
	"Order Item Id":                 "order_item_id",
	"Order Item Quantity":           "order_item_quantity",
	"Sales":                         "sales",
	"Order Item Total":              "order_item_total",
	"Order Profit Per Order":        "order_profit_per_order",
	"Order Region":                  "order_region",
	"Order State":                   "order_state",
	"Order Status":                  "order_status",
	"Product Name":                  "product_name",
	"shipping date (DateOrders)":    "shipping_date",
	"Shipping Mode":                 "shipping_mode",
}

// orderColumns is the cleaned schema, in storage order. Kind drives both CSV
// parsing and the SQLite column affinity.
var orderColumns = []struct {
	Name string
	Kind string // "text", "int", "real", "bool", "date"
}{
	{"order_id", "int"},
	{"order_item_id", "int"},
	{"order_date", "date"},
	{"shipping_date", "date"},
	{"order_region", "text"},
	{"order_country", "text"},
	{"order_city", "text"},
	{"order_state", "text"},
	{"order_status", "text"},
	{"customer_segment", "text"},
	{"market", "text"},
	{"category_name", "text"},
	{"department_name", "text"},
	{"product_name", "text"},
	{"payment_type", "text"},
	{"shipping_mode", "text"},
	{"delivery_status", "text"},
	{"days_for_shipment_scheduled", "int"},
	{"days_for_shipping_real", "int"},
	{"shipping_delay_days", "int"},
	{"on_time_delivery", "bool"},
	{"late_delivery_risk", "int"},
	{"sales", "real"},
	{"sales_per_customer", "real"},
	{"benefit_per_order", "real"},
	{"order_profit_per_order", "real"},
	{"order_item_quantity", "int"},
	{"order_item_total", "real"},
	{"order_item_discount", "real"},
	{"order_item_discount_rate", "real"},
}

// dateLayouts covers the DataCo export's "M/D/YYYY H:MM" timestamps plus the
// layouts we write back to SQLite.
var dateLayouts = []string{
	"1/2/2006 15:04",
	"1/2/2006 3:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// Prepare runs the one-shot ETL: read the raw DataCo CSV (latin-1 encoded),
// rename and coerce columns, derive shipping_delay_days and on_time_delivery,
// dedupe on order_item_id, drop rows missing order_id/order_date/sales, and
// write the cleaned rows to the orders table at dbPath.
// Returns the number of rows written.
func Prepare(csvPath, dbPath string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open raw dataset: %w", err)
	}
	defer f.Close()

	// The Kaggle export is latin-1, not UTF-8.
	r := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	// Header position of each cleaned column we keep.
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name, ok := rawRenameMap[strings.TrimSpace(h)]
		if !ok {
			continue
		}
		pos[name] = i
	}
	for _, required := range []string{"order_id", "order_date", "sales"} {
		if _, ok := pos[required]; !ok {
			return 0, fmt.Errorf("raw dataset is missing required column %q", required)
		}
	}

	logger.Info("parsing raw dataset",
		zap.String("path", csvPath),
		zap.Int("raw_columns", len(header)),
		zap.Int("kept_columns", len(pos)))

	seenItems := make(map[int64]bool)
	var rows [][]any
	var skipped int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read CSV record: %w", err)
		}

		row, ok := parseOrderRow(rec, pos)
		if !ok {
			skipped++
			continue
		}
		if itemID, isInt := row[1].(int64); isInt {
			if seenItems[itemID] {
				skipped++
				continue
			}
			seenItems[itemID] = true
		}
		rows = append(rows, row)
	}

	logger.Info("cleaned dataset",
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped))

	if err := writeOrders(dbPath, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// parseOrderRow coerces a raw record into the cleaned schema.
// Returns ok=false when a key field (order_id, order_date, sales) is missing.
func parseOrderRow(rec []string, pos map[string]int) ([]any, bool) {
	field := func(name string) string {
		i, ok := pos[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	row := make([]any, len(orderColumns))
	for ci, col := range orderColumns {
		raw := field(col.Name)
		switch col.Name {
		case "shipping_delay_days", "on_time_delivery":
			continue // derived below
		}
		if raw == "" {
			row[ci] = nil
			continue
		}
		switch col.Kind {
		case "int":
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				row[ci] = int64(v)
			}
		case "real":
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				row[ci] = v
			}
		case "date":
			if v, ok := parseDate(raw); ok {
				row[ci] = v
			}
		default:
			row[ci] = raw
		}
	}

	// Derived metrics: delay vs schedule and the on-time flag.
	real64, okReal := row[colIndex("days_for_shipping_real")].(int64)
	sched, okSched := row[colIndex("days_for_shipment_scheduled")].(int64)
	if okReal && okSched {
		delay := real64 - sched
		row[colIndex("shipping_delay_days")] = delay
		row[colIndex("on_time_delivery")] = delay <= 0
	}

	if row[colIndex("order_id")] == nil || row[colIndex("order_date")] == nil || row[colIndex("sales")] == nil {
		return nil, false
	}
	return row, true
}

func colIndex(name string) int {
	for i, c := range orderColumns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// writeOrders replaces the orders table at dbPath with the given rows.
func writeOrders(dbPath string, rows [][]any) error {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open dataset store: %w", err)
	}
	defer db.Close()

	var ddl strings.Builder
	ddl.WriteString("CREATE TABLE orders (\n")
	for i, col := range orderColumns {
		if i > 0 {
			ddl.WriteString(",\n")
		}
		affinity := "TEXT"
		switch col.Kind {
		case "int", "bool":
			affinity = "INTEGER"
		case "real":
			affinity = "REAL"
		}
		fmt.Fprintf(&ddl, "\t%s %s", col.Name, affinity)
	}
	ddl.WriteString("\n)")

	if _, err := db.Exec("DROP TABLE IF EXISTS orders"); err != nil {
		return fmt.Errorf("failed to reset orders table: %w", err)
	}
	if _, err := db.Exec(ddl.String()); err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := "?" + strings.Repeat(", ?", len(orderColumns)-1)
	stmt, err := tx.Prepare("INSERT INTO orders VALUES (" + placeholders + ")")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			switch x := v.(type) {
			case time.Time:
				args[i] = x.Format("2006-01-02 15:04:05")
			case bool:
				if x {
					args[i] = int64(1)
				} else {
					args[i] = int64(0)
				}
			default:
				args[i] = x
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert order row: %w", err)
		}
	}
	return tx.Commit()
}
