// Package loader reads the safety index CSV and writes it into the graph:
// one SafetyIndex node per row and a NEXT_DAY edge from each row to the row
// that follows it in the file.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/transitguard/transitguard-kg/engine/domain"
	"github.com/transitguard/transitguard-kg/pkg/metrics"
)

// Source column names.
const (
	ColumnDate  = "Date"
	ColumnScore = "safety_index"
)

// Store is the write side of the graph used by the loader.
type Store interface {
	UpsertSafetyIndex(ctx context.Context, s domain.SafetyIndex) error
	LinkNextDay(ctx context.Context, e domain.NextDay) error
}

// Report summarizes one load. On failure it reflects the rows written
// before the error; nothing is rolled back.
type Report struct {
	Path    string        `json:"path"`
	Rows    int           `json:"rows"`
	Nodes   int           `json:"nodes"`
	Edges   int           `json:"edges"`
	Elapsed time.Duration `json:"elapsed"`
}

// Loader writes CSV rows into a Store.
type Loader struct {
	store   Store
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a Loader. m may be nil.
func New(store Store, m *metrics.Collector, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, metrics: m, logger: logger}
}

// Load processes path row by row. Rows are chained in file order, not by
// calendar order of their dates.
func (l *Loader) Load(ctx context.Context, path string) (Report, error) {
	start := time.Now()
	report, err := l.load(ctx, path)
	report.Elapsed = time.Since(start)
	l.metrics.ObserveLoad(report.Elapsed)

	if err != nil {
		l.logger.Error("error loading data", "path", path, "rows", report.Rows, "err", err)
		return report, err
	}
	l.logger.Info("safety index loaded",
		"path", path,
		"rows", report.Rows,
		"nodes", report.Nodes,
		"edges", report.Edges,
		"duration", report.Elapsed,
	)
	return report, nil
}

func (l *Loader) load(ctx context.Context, path string) (Report, error) {
	report := Report{Path: path}

	f, err := os.Open(path)
	if err != nil {
		return report, domain.E(domain.KindConfig, "loader: open", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return report, domain.Errorf(domain.KindData, "loader: header", "%s is empty", path)
	}
	if err != nil {
		return report, domain.E(domain.KindData, "loader: header", err)
	}
	dateCol, scoreCol, err := columns(header)
	if err != nil {
		return report, err
	}

	var prev string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, domain.E(domain.KindData, "loader: read", err)
		}
		report.Rows++

		row, err := parseRow(record, dateCol, scoreCol, report.Rows)
		if err == nil {
			err = l.store.UpsertSafetyIndex(ctx, row)
		}
		l.metrics.ObserveLoaderRow(err)
		if err != nil {
			return report, err
		}
		report.Nodes++

		if report.Rows > 1 {
			if err := l.store.LinkNextDay(ctx, domain.NextDay{From: prev, To: row.Date}); err != nil {
				return report, err
			}
			report.Edges++
		}
		prev = row.Date
	}
	return report, nil
}

// columns locates the date and score columns by header name.
func columns(header []string) (dateCol, scoreCol int, err error) {
	dateCol, scoreCol = -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch h {
		case ColumnDate:
			dateCol = i
		case ColumnScore:
			scoreCol = i
		}
	}
	if dateCol < 0 {
		return 0, 0, domain.Errorf(domain.KindData, "loader: header", "missing column %q", ColumnDate)
	}
	if scoreCol < 0 {
		return 0, 0, domain.Errorf(domain.KindData, "loader: header", "missing column %q", ColumnScore)
	}
	return dateCol, scoreCol, nil
}

func parseRow(record []string, dateCol, scoreCol, n int) (domain.SafetyIndex, error) {
	if dateCol >= len(record) || scoreCol >= len(record) {
		return domain.SafetyIndex{}, domain.Errorf(domain.KindData, "loader: row "+strconv.Itoa(n), "expected at least %d fields, got %d", max(dateCol, scoreCol)+1, len(record))
	}
	date := strings.TrimSpace(record[dateCol])
	if date == "" {
		return domain.SafetyIndex{}, domain.Errorf(domain.KindData, "loader: row "+strconv.Itoa(n), "empty %s", ColumnDate)
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(record[scoreCol]), 64)
	if err != nil {
		return domain.SafetyIndex{}, domain.Errorf(domain.KindData, "loader: row "+strconv.Itoa(n), "invalid %s %q", ColumnScore, record[scoreCol])
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return domain.SafetyIndex{}, domain.Errorf(domain.KindData, "loader: row "+strconv.Itoa(n), "non-finite %s %q", ColumnScore, record[scoreCol])
	}
	return domain.SafetyIndex{Date: date, Score: score}, nil
}
