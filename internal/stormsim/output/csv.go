package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/metrics"
	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

// Leading columns, written ahead of the sorted geography columns so the
// files stay diffable between runs.
var csvColumnPriority = []string{"run_timestamp", "sim_id", "SimId", "geo_type", "geography", "total"}

// CSVWriter writes rows to one CSV file per output kind, named
// {dir}/{storm_type}_{kind}.csv. The header is taken from the first row
// written to each file and files are kept open for the life of the run.
type CSVWriter struct {
	dir       string
	stormType string
	overwrite bool
	files     map[string]*csvFile
}

type csvFile struct {
	file   *os.File
	writer *csv.Writer
	header []string
}

// NewCSVWriter builds the writer, refusing to proceed if any target file
// already exists and overwriting was not allowed. The existence check covers
// the known output kinds only.
func NewCSVWriter(dir string, stormType string, overwrite bool) (*CSVWriter, error) {
	w := &CSVWriter{
		dir:       dir,
		stormType: stormType,
		overwrite: overwrite,
		files:     make(map[string]*csvFile),
	}
	if !overwrite {
		for _, kind := range model.AllOutputs {
			path := w.filepath(kind)
			if _, err := os.Stat(path); err == nil {
				return nil, &InitializationError{
					Writer:  w.Name(),
					Message: fmt.Sprintf("file exists and overwrite is not enabled: %s", path),
				}
			}
		}
	}
	return w, nil
}

func (w *CSVWriter) Name() string {
	return "csv"
}

// LazyInitialize makes sure the output directory exists.
func (w *CSVWriter) LazyInitialize() error {
	return errors.Wrapf(os.MkdirAll(w.dir, 0o755), "creating csv output dir %s", w.dir)
}

func (w *CSVWriter) filepath(kind model.OutputKind) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", w.stormType, kind))
}

func (w *CSVWriter) WriteRows(kind model.OutputKind, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	path := w.filepath(kind)
	f, err := w.open(path, rows[0])
	if err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(f.header))
		for i, column := range f.header {
			if value, ok := row[column]; ok {
				record[i] = fmt.Sprintf("%v", value)
			}
		}
		if err := f.writer.Write(record); err != nil {
			return errors.Wrapf(err, "writing csv row to %s", path)
		}
	}
	f.writer.Flush()
	if err := f.writer.Error(); err != nil {
		return errors.Wrapf(err, "flushing csv rows to %s", path)
	}
	metrics.RecordRowsWritten(w.Name(), string(kind), len(rows))
	return nil
}

// open lazily opens the file for the given path, writing the header derived
// from the first row. The open file is kept for subsequent writes.
func (w *CSVWriter) open(path string, first model.Row) (*csvFile, error) {
	if f, ok := w.files[path]; ok {
		return f, nil
	}
	log.Debugf("Opening csv output file %s", path)
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening csv output file %s", path)
	}
	f := &csvFile{
		file:   file,
		writer: csv.NewWriter(file),
		header: headerColumns(first),
	}
	if err := f.writer.Write(f.header); err != nil {
		return nil, errors.Wrapf(err, "writing csv header to %s", path)
	}
	w.files[path] = f
	return f, nil
}

// Close flushes and closes every open file.
func (w *CSVWriter) Close() error {
	var lastErr error
	for path, f := range w.files {
		f.writer.Flush()
		if err := f.writer.Error(); err != nil {
			lastErr = errors.Wrapf(err, "flushing %s", path)
		}
		if err := f.file.Close(); err != nil {
			lastErr = errors.Wrapf(err, "closing %s", path)
		}
	}
	return lastErr
}

// headerColumns orders a row's columns deterministically: known identity
// columns first, then the remaining columns sorted.
func headerColumns(row model.Row) []string {
	header := make([]string, 0, len(row))
	seen := make(map[string]bool, len(row))
	for _, column := range csvColumnPriority {
		if _, ok := row[column]; ok {
			header = append(header, column)
			seen[column] = true
		}
	}
	rest := make([]string, 0, len(row))
	for column := range row {
		if !seen[column] {
			rest = append(rest, column)
		}
	}
	sort.Strings(rest)
	return append(header, rest...)
}
