package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawCSV is a tiny latin-1 DataCo export: one row with an accented region
// (0xE9 = é), one clean row, a duplicate order item, and a row missing its
// order date.
var rawCSV = []byte("Order Id,Order Item Id,order date (DateOrders),Order Region,Category Name,Days for shipment (scheduled),Days for shipping (real),Sales\n" +
	"1,11,1/2/2018 10:30,Caf\xe9 West,Electronics,2,4,100.5\n" +
	"2,12,1/3/2018 9:00,East,Furniture,4,2,200\n" +
	"2,12,1/3/2018 9:00,East,Furniture,4,2,200\n" +
	"3,13,,South,Office,1,1,50\n")

func TestPrepareAndLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "raw.csv")
	dbPath := filepath.Join(dir, "orders.db")
	require.NoError(t, os.WriteFile(csvPath, rawCSV, 0o644))

	rows, err := Prepare(csvPath, dbPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rows, "duplicate item and dateless row are dropped")

	provider := NewProvider(dbPath, nil)
	tbl, err := provider.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.NumRows())

	region, err := tbl.Cell(0, "order_region")
	require.NoError(t, err)
	assert.Equal(t, "Café West", region, "latin-1 bytes decode to UTF-8")

	delay, err := tbl.Cell(0, "shipping_delay_days")
	require.NoError(t, err)
	assert.Equal(t, int64(2), delay)

	late, err := tbl.Cell(0, "on_time_delivery")
	require.NoError(t, err)
	assert.Equal(t, false, late)

	onTime, err := tbl.Cell(1, "on_time_delivery")
	require.NoError(t, err)
	assert.Equal(t, true, onTime)

	sales, err := tbl.Cell(0, "sales")
	require.NoError(t, err)
	assert.Equal(t, 100.5, sales)

	orderDate, err := tbl.Cell(0, "order_date")
	require.NoError(t, err)
	when, ok := orderDate.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2018, when.Year())
}

func TestProviderLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "raw.csv")
	dbPath := filepath.Join(dir, "orders.db")
	require.NoError(t, os.WriteFile(csvPath, rawCSV, 0o644))

	_, err := Prepare(csvPath, dbPath, nil)
	require.NoError(t, err)

	provider := NewProvider(dbPath, nil)
	first, err := provider.Load(context.Background())
	require.NoError(t, err)
	second, err := provider.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestProviderMissingDatabase(t *testing.T) {
	provider := NewProvider(filepath.Join(t.TempDir(), "missing.db"), nil)
	_, err := provider.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weaver dataset prepare")
}

func TestPrepareRejectsMissingRequiredColumns(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Order Id,Order Region\n1,West\n"), 0o644))

	_, err := Prepare(csvPath, filepath.Join(dir, "orders.db"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_date")
}
