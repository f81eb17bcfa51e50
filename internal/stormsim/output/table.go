package output

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/configuration"
	"github.com/canopyrisk/stormsim/internal/stormsim/database"
	"github.com/canopyrisk/stormsim/internal/stormsim/metrics"
	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

var tableDialect = goqu.Dialect("postgres")

// TableWriter streams rows into one warehouse table per output kind, named
// {dataset}.{storm_type}_{kind}. Inserts are batched and retried through a
// RetryingBatchInserter per kind.
//
// The database pool is opened in LazyInitialize so it is always constructed
// inside the goroutine that performs writes.
type TableWriter struct {
	config    configuration.TableConfig
	stormType string

	db        *pgxpool.Pool
	inserters map[model.OutputKind]*RetryingBatchInserter
}

func NewTableWriter(config configuration.TableConfig, stormType string) *TableWriter {
	return &TableWriter{
		config:    config,
		stormType: stormType,
		inserters: make(map[model.OutputKind]*RetryingBatchInserter),
	}
}

func (w *TableWriter) Name() string {
	return "table"
}

func (w *TableWriter) LazyInitialize() error {
	db, err := database.OpenPgxPool(w.config.Postgres)
	if err != nil {
		return errors.Wrap(err, "opening warehouse connection pool")
	}
	w.db = db
	return nil
}

func (w *TableWriter) tableName(kind model.OutputKind) string {
	return fmt.Sprintf("%s_%s", w.stormType, kind)
}

func (w *TableWriter) WriteRows(kind model.OutputKind, rows []model.Row) error {
	inserter, err := w.inserter(kind)
	if err != nil {
		return err
	}
	if err := inserter.Insert(context.Background(), sanitizeRows(rows)); err != nil {
		return err
	}
	metrics.RecordRowsWritten(w.Name(), string(kind), len(rows))
	return nil
}

func (w *TableWriter) inserter(kind model.OutputKind) (*RetryingBatchInserter, error) {
	if inserter, ok := w.inserters[kind]; ok {
		return inserter, nil
	}

	batchSize := w.config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	maxAttempts := w.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultInsertMaxAttempts
	}
	backoff := ExponentialBackoff{Base: w.config.RetryInitialDelay, Max: w.config.RetryMaxDelay}

	insert := func(ctx context.Context, rows []model.Row) []error {
		return w.insertRows(ctx, kind, rows)
	}
	inserter, err := NewRetryingBatchInserter(insert, batchSize, maxAttempts, backoff)
	if err != nil {
		return nil, err
	}
	w.inserters[kind] = inserter
	return inserter, nil
}

// insertRows performs the physical insert, reporting failures as a returned
// error set so the batching layer can decide whether to retry.
func (w *TableWriter) insertRows(ctx context.Context, kind model.OutputKind, rows []model.Row) []error {
	records := make([]interface{}, len(rows))
	for i, row := range rows {
		records[i] = goqu.Record(row)
	}

	var table interface{}
	if w.config.Dataset != "" {
		table = goqu.S(w.config.Dataset).Table(w.tableName(kind))
	} else {
		table = goqu.T(w.tableName(kind))
	}

	sql, args, err := tableDialect.Insert(table).Rows(records...).Prepared(true).ToSQL()
	if err != nil {
		return []error{errors.Wrapf(err, "building insert for %s", w.tableName(kind))}
	}
	if _, err := w.db.Exec(ctx, sql, args...); err != nil {
		log.Warnf("Insert of %d rows into %s failed: %v", len(rows), w.tableName(kind), err)
		return []error{errors.Wrapf(err, "inserting %d rows into %s", len(rows), w.tableName(kind))}
	}
	return nil
}

// Close flushes every pending batch and releases the pool. A failed final
// flush propagates; it never silently drops rows.
func (w *TableWriter) Close() error {
	var result *multierror.Error
	for kind, inserter := range w.inserters {
		if err := inserter.Close(context.Background()); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "flushing %s inserter", kind))
		}
	}
	if w.db != nil {
		w.db.Close()
	}
	return result.ErrorOrNil()
}

// sanitizeRows rewrites each row's column names for the warehouse, replacing
// characters postgres and the downstream tooling reject.
func sanitizeRows(rows []model.Row) []model.Row {
	sanitized := make([]model.Row, len(rows))
	for i, row := range rows {
		out := make(model.Row, len(row))
		for column, value := range row {
			out[FormatColumnName(column, "")] = value
		}
		sanitized[i] = out
	}
	return sanitized
}
