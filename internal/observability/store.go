// Package observability implements the time-series sink: a
// DuckDB-backed store for trading metrics, OHLCV candles and system
// events, with a versioned, idempotent migration path.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
	"github.com/abdoElHodaky/tradSys/internal/observability/migrations"
)

const (
	maxIdleConns = 2
	maxOpenConns = 10
)

// Store wraps a DuckDB connection pool bounded to maxIdleConns idle and
// maxOpenConns open connections; up to maxOpenConns readers or writers
// may hold a connection at once.
type Store struct {
	db      *sql.DB
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// Open creates (or attaches to) the DuckDB file at path, applies every
// pending migration, and returns a ready Store. An empty path opens an
// in-memory database. A nil collectors disables metrics feeding.
func Open(path string, logger *zap.Logger, collectors *metrics.Collectors) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "open duckdb store")
	}
	db.SetMaxIdleConns(maxIdleConns)
	db.SetMaxOpenConns(maxOpenConns)

	if err := migrations.Apply(db); err != nil {
		db.Close()
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "apply observability migrations")
	}

	return &Store{
		db:      db,
		logger:  logger.With(zap.String("component", "observability.store")),
		metrics: collectors,
	}, nil
}

// recordWriteError feeds the ObservabilityWriteErrors counter. Database
// errors on this path are non-fatal: callers still receive err and
// decide whether to log-and-continue or propagate it.
func (s *Store) recordWriteError(operation string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObservabilityWriteErrors.WithLabelValues(operation).Inc()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Metric is one row of trading_metrics.
type Metric struct {
	Timestamp time.Time
	Name      string
	Symbol    string
	Value     float64
	Labels    map[string]string
}

// Candle is one row of trading_candles.
type Candle struct {
	Timestamp  time.Time
	Symbol     string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	TradeCount int64
}

// Severity mirrors the system_events severity enum.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// SystemEvent is one row of system_events.
type SystemEvent struct {
	ID        int64
	Timestamp time.Time
	EventType string
	Severity  Severity
	Message   string
	Details   json.RawMessage
}

// InsertMetric inserts a single metric row. Database errors on this
// path are non-fatal to the caller's trading logic: callers
// should log and continue rather than propagate upward into the
// trading critical path.
func (s *Store) InsertMetric(ctx context.Context, m Metric) error {
	return s.InsertMetrics(ctx, []Metric{m})
}

// InsertMetrics inserts a batch of metrics in a single transaction.
func (s *Store) InsertMetrics(ctx context.Context, batch []Metric) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.recordWriteError("insert_metrics")
		return domainerrors.Wrap(err, domainerrors.CodeIO, "begin metrics batch")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trading_metrics (timestamp, metric_name, symbol, value, labels) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		s.recordWriteError("insert_metrics")
		return domainerrors.Wrap(err, domainerrors.CodeIO, "prepare metrics insert")
	}
	defer stmt.Close()

	for _, m := range batch {
		labelsJSON, err := json.Marshal(m.Labels)
		if err != nil {
			s.recordWriteError("insert_metrics")
			return domainerrors.Wrap(err, domainerrors.CodeSerialization, "encode metric labels")
		}
		if _, err := stmt.ExecContext(ctx, m.Timestamp, m.Name, m.Symbol, m.Value, string(labelsJSON)); err != nil {
			s.recordWriteError("insert_metrics")
			return domainerrors.Wrap(err, domainerrors.CodeIO, "insert metric")
		}
	}
	if err := tx.Commit(); err != nil {
		s.recordWriteError("insert_metrics")
		return err
	}
	return nil
}

// InsertCandle records a closed bar.
func (s *Store) InsertCandle(ctx context.Context, c Candle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trading_candles (timestamp, symbol, open, high, low, close, volume, trade_count) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Timestamp, c.Symbol, c.Open, c.High, c.Low, c.Close, c.Volume, c.TradeCount,
	)
	if err != nil {
		s.recordWriteError("insert_candle")
		return domainerrors.Wrap(err, domainerrors.CodeIO, "insert candle")
	}
	return nil
}

// LogEvent records a system event.
func (s *Store) LogEvent(ctx context.Context, eventType string, severity Severity, message string, details any) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.recordWriteError("log_event")
		return domainerrors.Wrap(err, domainerrors.CodeSerialization, "encode event details")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO system_events (timestamp, event_type, severity, message, details) VALUES (?, ?, ?, ?, ?)`,
		time.Now(), eventType, string(severity), message, string(detailsJSON),
	)
	if err != nil {
		s.recordWriteError("log_event")
		return domainerrors.Wrap(err, domainerrors.CodeIO, "insert system event")
	}
	return nil
}

// GetMetrics returns metrics named name (optionally filtered to symbol
// and a start time), newest first, capped at limit rows.
func (s *Store) GetMetrics(ctx context.Context, name, symbol string, start *time.Time, limit int) ([]Metric, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT timestamp, metric_name, symbol, value, labels FROM trading_metrics WHERE metric_name = ?`)
	args := []any{name}

	if symbol != "" {
		query.WriteString(` AND symbol = ?`)
		args = append(args, symbol)
	}
	if start != nil {
		query.WriteString(` AND timestamp >= ?`)
		args = append(args, *start)
	}
	query.WriteString(` ORDER BY timestamp DESC`)
	if limit > 0 {
		query.WriteString(fmt.Sprintf(` LIMIT %d`, limit))
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "query metrics")
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		var labelsJSON string
		if err := rows.Scan(&m.Timestamp, &m.Name, &m.Symbol, &m.Value, &labelsJSON); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "scan metric row")
		}
		if labelsJSON != "" {
			_ = json.Unmarshal([]byte(labelsJSON), &m.Labels)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AggregateFunc is one of the time-bucketed aggregation functions of
// get_aggregated_metrics contract.
type AggregateFunc string

const (
	AggAvg   AggregateFunc = "avg"
	AggSum   AggregateFunc = "sum"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
	AggCount AggregateFunc = "count"
)

// AggregatedPoint is one time-bucketed aggregation result.
type AggregatedPoint struct {
	Bucket time.Time
	Value  float64
}

// GetAggregatedMetrics buckets metric_name's values into fixed-width
// time buckets and applies fn to each bucket.
func (s *Store) GetAggregatedMetrics(ctx context.Context, name string, bucket time.Duration, start *time.Time, fn AggregateFunc) ([]AggregatedPoint, error) {
	aggExpr, err := aggregateExpr(fn)
	if err != nil {
		return nil, err
	}

	bucketSeconds := bucket.Seconds()
	if bucketSeconds <= 0 {
		return nil, domainerrors.New(domainerrors.CodeConfiguration, "aggregation bucket must be positive")
	}

	query := fmt.Sprintf(
		`SELECT to_timestamp(floor(epoch(timestamp) / %f) * %f) AS bucket, %s(value) FROM trading_metrics WHERE metric_name = ?`,
		bucketSeconds, bucketSeconds, aggExpr,
	)
	args := []any{name}
	if start != nil {
		query += ` AND timestamp >= ?`
		args = append(args, *start)
	}
	query += ` GROUP BY bucket ORDER BY bucket ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "query aggregated metrics")
	}
	defer rows.Close()

	var out []AggregatedPoint
	for rows.Next() {
		var p AggregatedPoint
		if err := rows.Scan(&p.Bucket, &p.Value); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "scan aggregated row")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func aggregateExpr(fn AggregateFunc) (string, error) {
	switch fn {
	case AggAvg, AggSum, AggMin, AggMax, AggCount:
		return string(fn), nil
	default:
		return "", domainerrors.Newf(domainerrors.CodeConfiguration, "unsupported aggregate function %q", fn)
	}
}

// TableStats reports a row count per observability table.
type TableStats struct {
	TradingMetrics int64
	TradingCandles int64
	SystemEvents   int64
}

// GetTableStats reports row counts for every observability table.
func (s *Store) GetTableStats(ctx context.Context) (TableStats, error) {
	var stats TableStats
	queries := []struct {
		query string
		dest  *int64
	}{
		{`SELECT count(*) FROM trading_metrics`, &stats.TradingMetrics},
		{`SELECT count(*) FROM trading_candles`, &stats.TradingCandles},
		{`SELECT count(*) FROM system_events`, &stats.SystemEvents},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return TableStats{}, domainerrors.Wrap(err, domainerrors.CodeIO, "query table stats")
		}
	}
	return stats, nil
}

// Optimize runs DuckDB's ANALYZE-equivalent maintenance pass.
func (s *Store) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `ANALYZE`); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeIO, "optimize observability store")
	}
	return nil
}
