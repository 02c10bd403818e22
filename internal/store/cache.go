// Package store provides a SQLite-backed cache of the last fetched series.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/salesdash/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNoSnapshot is returned when nothing has been cached yet.
var ErrNoSnapshot = errors.New("store: no cached snapshot")

// OriginCache labels records served from this cache.
const OriginCache = "cache"

// Cache stores the latest sales and forecast snapshots.
type Cache struct {
	db *sql.DB
}

// SnapshotMeta describes one cached snapshot.
type SnapshotMeta struct {
	Name      string
	Origin    string
	FetchedAt time.Time
	Rows      int
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

type row struct {
	date  string
	value float64
}

// ReplaceSales overwrites the sales snapshot, preserving input order.
func (c *Cache) ReplaceSales(records []model.SalesRecord, origin string, fetchedAt time.Time) error {
	rows := make([]row, len(records))
	for i, r := range records {
		rows[i] = row{r.Date, r.Value}
	}
	return c.replace(snapshotSales, "sales_snapshot", rows, origin, fetchedAt)
}

// ReplaceForecast overwrites the forecast snapshot.
func (c *Cache) ReplaceForecast(records []model.ForecastRecord, origin string, fetchedAt time.Time) error {
	rows := make([]row, len(records))
	for i, r := range records {
		rows[i] = row{r.Date, r.Value}
	}
	return c.replace(snapshotForecast, "forecast_snapshot", rows, origin, fetchedAt)
}

func (c *Cache) replace(name, table string, rows []row, origin string, fetchedAt time.Time) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	//nolint:gosec // table is one of two constants
	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return err
	}

	//nolint:gosec // table is one of two constants
	stmt, err := tx.Prepare("INSERT INTO " + table + " (seq, date, value) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range rows {
		// SQLite has no NaN; store it as NULL.
		var v any = r.value
		if math.IsNaN(r.value) {
			v = nil
		}
		if _, err := stmt.Exec(i, r.date, v); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO snapshot_meta (name, origin, fetched_at, rows)
		VALUES (?, ?, ?, ?)`, name, origin, fetchedAt.UTC().Format(time.RFC3339Nano), len(rows))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// LoadSales reads the cached sales snapshot in stored order.
func (c *Cache) LoadSales(ctx context.Context) ([]model.SalesRecord, error) {
	rows, err := c.load(ctx, "sales_snapshot")
	if err != nil {
		return nil, err
	}
	records := make([]model.SalesRecord, len(rows))
	for i, r := range rows {
		records[i] = model.SalesRecord{Date: r.date, Value: r.value}
	}
	return records, nil
}

// LoadForecast reads the cached forecast snapshot.
func (c *Cache) LoadForecast(ctx context.Context) ([]model.ForecastRecord, error) {
	rows, err := c.load(ctx, "forecast_snapshot")
	if err != nil {
		return nil, err
	}
	records := make([]model.ForecastRecord, len(rows))
	for i, r := range rows {
		records[i] = model.ForecastRecord{Date: r.date, Value: r.value}
	}
	return records, nil
}

func (c *Cache) load(ctx context.Context, table string) ([]row, error) {
	//nolint:gosec // table is one of two constants
	rs, err := c.db.QueryContext(ctx, "SELECT date, value FROM "+table+" ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rs.Close() }()

	var rows []row
	for rs.Next() {
		var r row
		var v sql.NullFloat64
		if err := rs.Scan(&r.date, &v); err != nil {
			return nil, err
		}
		r.value = math.NaN()
		if v.Valid {
			r.value = v.Float64
		}
		rows = append(rows, r)
	}
	return rows, rs.Err()
}

// Meta returns metadata for the named snapshot ("sales" or "forecast").
func (c *Cache) Meta(name string) (SnapshotMeta, error) {
	m := SnapshotMeta{Name: name}
	var fetched string
	err := c.db.QueryRow("SELECT origin, fetched_at, rows FROM snapshot_meta WHERE name = ?", name).
		Scan(&m.Origin, &fetched, &m.Rows)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNoSnapshot
	}
	if err != nil {
		return m, err
	}
	m.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
	return m, nil
}

// SalesMeta returns metadata for the sales snapshot.
func (c *Cache) SalesMeta() (SnapshotMeta, error) { return c.Meta(snapshotSales) }

// ForecastMeta returns metadata for the forecast snapshot.
func (c *Cache) ForecastMeta() (SnapshotMeta, error) { return c.Meta(snapshotForecast) }

// Fetch serves the cached sales snapshot as a series source.
func (c *Cache) Fetch(ctx context.Context) ([]model.SalesRecord, error) {
	if _, err := c.SalesMeta(); err != nil {
		return nil, err
	}
	return c.LoadSales(ctx)
}

// Predict replays the cached forecast, ignoring the input series.
func (c *Cache) Predict(ctx context.Context, _ []model.SalesRecord) ([]model.ForecastRecord, error) {
	if _, err := c.ForecastMeta(); err != nil {
		return nil, err
	}
	return c.LoadForecast(ctx)
}
