package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sales_snapshot (
    seq                  INTEGER PRIMARY KEY,
    date                 TEXT NOT NULL,
    value                REAL
);

CREATE TABLE IF NOT EXISTS forecast_snapshot (
    seq                  INTEGER PRIMARY KEY,
    date                 TEXT NOT NULL,
    value                REAL
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
    name                 TEXT PRIMARY KEY,
    origin               TEXT NOT NULL,
    fetched_at           TEXT NOT NULL,
    rows                 INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_date ON sales_snapshot(date);
CREATE INDEX IF NOT EXISTS idx_forecast_date ON forecast_snapshot(date);
`

const (
	snapshotSales    = "sales"
	snapshotForecast = "forecast"
)
