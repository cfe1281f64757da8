// internal/adapter/export/exporter.go

package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/service/report"
)

// Format is an output file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

const timestampLayout = "2006-01-02-15:04"

// Exporter writes simulation outputs under a root directory
type Exporter struct {
	dir    string
	format Format
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates a new exporter
func NewExporter(dir string, format Format, logger *slog.Logger) *Exporter {
	if format == "" {
		format = FormatCSV
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{dir: dir, format: format, logger: logger, now: time.Now}
}

type table struct {
	header  []string
	records [][]interface{}
}

// WriteQueries writes the flattened keyword tree of run runID
func (e *Exporter) WriteQueries(runID, seed string, scope geo.Scope, window keyword.Window, rows []keyword.Row) (string, error) {
	t := table{header: []string{"initial search term", "startDate", "endDate", "query", "value", "level"}}
	for _, r := range rows {
		t.records = append(t.records, []interface{}{seed, window.Start, window.End, r.Query, r.Value, r.Level})
	}
	return e.write(filepath.Join("keywords", scope.Code, "top_queries"), runID, t)
}

// WriteVolumes writes the relative search volumes of run runID
func (e *Exporter) WriteVolumes(runID string, scope geo.Scope, volumes []keyword.RelativeVolume) (string, error) {
	t := table{header: []string{"term", "relative_search_volume"}}
	for _, v := range volumes {
		t.records = append(t.records, []interface{}{v.Term, v.Weight})
	}
	return e.write(filepath.Join("keywords", scope.Code, "relative_search_volume"), runID, t)
}

// WriteSiteReport writes the site probability report of run runID
func (e *Exporter) WriteSiteReport(runID string, scope geo.Scope, rows []report.Row) (string, error) {
	t := table{header: []string{"initial_search_query", "query", "position", "link", "displayLink", "site_probability"}}
	for _, r := range rows {
		t.records = append(t.records, []interface{}{r.InitialQuery, r.Query, r.Position, r.Link, r.DisplayLink, r.SiteProbability})
	}
	return e.write(filepath.Join("search", scope.Code), runID, t)
}

func (e *Exporter) write(subdir, runID string, t table) (string, error) {
	dir := filepath.Join(e.dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}

	name, err := e.fileName(dir, runID)
	if err != nil {
		return "", err
	}
	switch e.format {
	case FormatXLSX:
		err = e.writeXLSX(name, t)
	default:
		err = e.writeCSV(name, t)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Wrote output file", "path", name, "rows", len(t.records))
	return name, nil
}

// fileName returns <timestamp>_<runID>.<format> under dir, adding a counter
// when that file already exists so earlier outputs are never overwritten.
func (e *Exporter) fileName(dir, runID string) (string, error) {
	base := e.now().Format(timestampLayout)
	if runID != "" {
		base += "_" + runID
	}
	ext := "." + string(e.format)

	name := filepath.Join(dir, base+ext)
	for i := 1; ; i++ {
		_, err := os.Stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("error checking %s: %w", name, err)
		}
		name = filepath.Join(dir, base+"-"+strconv.Itoa(i)+ext)
	}
}

func (e *Exporter) writeCSV(name string, t table) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	for i, rec := range t.records {
		if err := w.Write(stringify(rec)); err != nil {
			e.logger.Error("Skipping unwritable row", "path", name, "row", i, "error", err)
			continue
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error flushing %s: %w", name, err)
	}
	return nil
}

func (e *Exporter) writeXLSX(name string, t table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(t.header))
	for i, h := range t.header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	row := 2
	for i, rec := range t.records {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		rec := rec
		if err := f.SetSheetRow(sheet, cell, &rec); err != nil {
			e.logger.Error("Skipping unwritable row", "path", name, "row", i, "error", err)
			continue
		}
		row++
	}

	if err := f.SaveAs(name); err != nil {
		return fmt.Errorf("error saving %s: %w", name, err)
	}
	return nil
}

func stringify(rec []interface{}) []string {
	out := make([]string, len(rec))
	for i, v := range rec {
		switch x := v.(type) {
		case string:
			out[i] = x
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case int:
			out[i] = strconv.Itoa(x)
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}
