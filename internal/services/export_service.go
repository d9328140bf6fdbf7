package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/observability"
	"github.com/cattlebreed/server/internal/repository"
)

const (
	exportJSONDate = "2006-01-02 15:04:05"
	exportCSVDate  = "Jan 02, 2006 15:04"
	exportFileTime = "2006-01-02_15-04-05"
)

var (
	csvHeader         = []string{"ID", "Animal ID", "Date", "Image Path", "Body Length", "Height", "Chest Width", "Rump Angle", "ATC Score", "Synced"}
	exportNamePattern = regexp.MustCompile(`^cattle_records_[0-9_-]+\.(json|csv|pdf)$`)
)

// ExportOptions wires the optional collaborators of ExportService
type ExportOptions struct {
	// FontPath is a TTF with Devanagari glyphs for the Hindi half of PDF
	// reports. Empty means an installed font is looked up; without one the
	// Hindi labels are romanized.
	FontPath string
	Clock    Clock
	Metrics  *observability.BusinessMetrics
	Events   EventPublisher
}

// ExportService writes all records to JSON, CSV or PDF files
type ExportService struct {
	dir      string
	repo     repository.AnimalRecordRepo
	hashes   *HashService
	fontPath string
	clock    Clock
	metrics  *observability.BusinessMetrics
	events   EventPublisher
}

// NewExportService creates the export directory if needed
func NewExportService(dir string, repo repository.AnimalRecordRepo, opts ExportOptions) (*ExportService, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.FontPath == "" {
		opts.FontPath = FindDevanagariFont()
	}
	return &ExportService{
		dir:      dir,
		repo:     repo,
		hashes:   NewHashService(),
		fontPath: opts.FontPath,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		events:   opts.Events,
	}, nil
}

// Export writes every record, newest first, in format. Failures come back as
// *models.ExportFailure.
func (s *ExportService) Export(ctx context.Context, format models.ExportFormat) (*models.ExportResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ExportService", "Export")
	defer span.End()
	span.SetAttributes(observability.ExportFormat(string(format)))

	result, err := s.export(ctx, format)
	if err != nil {
		s.metrics.RecordExport(ctx, string(format), 0, false)
		observability.RecordError(span, err)
		observability.WithContext(ctx).WithError(err).Error("Export failed")
		if errors.Is(err, models.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, &models.ExportFailure{Format: format, Err: err}
	}

	s.metrics.RecordExport(ctx, string(format), result.RecordCount, true)
	publish(s.events, TopicExports, WSTypeExportCreated, result)
	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"file":    result.FileName,
		"records": result.RecordCount,
	}).Info("Records exported")
	observability.SetSuccess(span)
	return result, nil
}

func (s *ExportService) export(ctx context.Context, format models.ExportFormat) (*models.ExportResult, error) {
	var write func(io.Writer, []*models.AnimalRecord, time.Time) error
	switch format {
	case models.FormatJSON:
		write = func(w io.Writer, recs []*models.AnimalRecord, _ time.Time) error { return WriteJSON(w, recs) }
	case models.FormatCSV:
		write = func(w io.Writer, recs []*models.AnimalRecord, _ time.Time) error { return WriteCSV(w, recs) }
	case models.FormatPDF:
		write = func(w io.Writer, recs []*models.AnimalRecord, now time.Time) error {
			return WritePDFReport(w, recs, now, s.fontPath)
		}
	default:
		return nil, models.ErrUnsupportedFormat
	}

	records, err := s.repo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	f, name, err := s.createFile(now, format)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, name)

	if err := write(f, records, now); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	sum, err := s.hashes.ComputeFileHash(path)
	if err != nil {
		return nil, err
	}

	return &models.ExportResult{
		FileName:    name,
		Path:        path,
		Format:      format,
		RecordCount: len(records),
		Size:        info.Size(),
		SHA256:      sum,
		CreatedAt:   now,
		Message:     exportMessage(format, path),
	}, nil
}

func exportMessage(format models.ExportFormat, path string) string {
	if format == models.FormatPDF {
		return "Data exported to PDF successfully! Bilingual report saved at: " + path
	}
	return fmt.Sprintf("Data exported to %s successfully! File saved at: %s", strings.ToUpper(string(format)), path)
}

// createFile opens cattle_records_<time>.<ext>, adding _1, _2... when the
// second is already taken
func (s *ExportService) createFile(now time.Time, format models.ExportFormat) (*os.File, string, error) {
	stem := "cattle_records_" + now.Format(exportFileTime)
	for i := 0; i < 100; i++ {
		name := stem + "." + string(format)
		if i > 0 {
			name = fmt.Sprintf("%s_%d.%s", stem, i, format)
		}
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, name, nil
	}
	return nil, "", fmt.Errorf("too many exports at %s", now.Format(exportFileTime))
}

// ListExports returns the export files, newest first
func (s *ExportService) ListExports() ([]models.ExportFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	files := make([]models.ExportFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !exportNamePattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, models.ExportFile{
			FileName:  e.Name(),
			Format:    models.ExportFormat(strings.TrimPrefix(filepath.Ext(e.Name()), ".")),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].FileName > files[j].FileName
		}
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// OpenExport opens a file previously written by Export
func (s *ExportService) OpenExport(name string) (*os.File, models.ExportFormat, error) {
	if !validExportName(name) {
		return nil, "", models.ErrInvalidExportName
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", models.ErrExportNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return f, models.ExportFormat(strings.TrimPrefix(filepath.Ext(name), ".")), nil
}

// ExportETag returns the entity tag ("sha256:<hex>") of export name and
// whether an If-None-Match header value already names that content
func (s *ExportService) ExportETag(name, ifNoneMatch string) (string, bool, error) {
	if !validExportName(name) {
		return "", false, models.ErrInvalidExportName
	}
	sum, err := s.hashes.ComputeFileHash(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, models.ErrExportNotFound
	}
	if err != nil {
		return "", false, err
	}

	etag := `"sha256:` + sum + `"`
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if s.hashes.Matches(strings.Trim(candidate, `"`), sum) {
			return etag, true, nil
		}
	}
	return etag, false, nil
}

func validExportName(name string) bool {
	return name == filepath.Base(name) && exportNamePattern.MatchString(name)
}

type exportedRecord struct {
	ID         int64   `json:"id"`
	AnimalID   string  `json:"animalId"`
	Date       string  `json:"date"`
	ImagePath  string  `json:"imagePath"`
	BodyLength float64 `json:"bodyLength"`
	Height     float64 `json:"height"`
	ChestWidth float64 `json:"chestWidth"`
	RumpAngle  float64 `json:"rumpAngle"`
	ATCScore   int     `json:"atcScore"`
	Synced     bool    `json:"synced"`
}

// WriteJSON writes records as an indented array with "yyyy-MM-dd HH:mm:ss" UTC dates
func WriteJSON(w io.Writer, records []*models.AnimalRecord) error {
	out := make([]exportedRecord, 0, len(records))
	for _, r := range records {
		out = append(out, exportedRecord{
			ID:         r.ID,
			AnimalID:   r.AnimalID,
			Date:       r.Date.UTC().Format(exportJSONDate),
			ImagePath:  r.ImagePath,
			BodyLength: r.BodyLength,
			Height:     r.Height,
			ChestWidth: r.ChestWidth,
			RumpAngle:  r.RumpAngle,
			ATCScore:   r.ATCScore,
			Synced:     r.Synced,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ParseJSONExport reads a file written by WriteJSON
func ParseJSONExport(r io.Reader) ([]*models.AnimalRecord, error) {
	var in []exportedRecord
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("invalid export: %w", err)
	}

	records := make([]*models.AnimalRecord, 0, len(in))
	for _, e := range in {
		date, err := time.ParseInLocation(exportJSONDate, e.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q for record %d: %w", e.Date, e.ID, err)
		}
		records = append(records, &models.AnimalRecord{
			ID:         e.ID,
			AnimalID:   e.AnimalID,
			Date:       date,
			ImagePath:  e.ImagePath,
			BodyLength: e.BodyLength,
			Height:     e.Height,
			ChestWidth: e.ChestWidth,
			RumpAngle:  e.RumpAngle,
			ATCScore:   e.ATCScore,
			Synced:     e.Synced,
		})
	}
	return records, nil
}

// WriteCSV writes the fixed header and one row per record
func WriteCSV(w io.Writer, records []*models.AnimalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.AnimalID,
			r.Date.UTC().Format(exportCSVDate),
			r.ImagePath,
			formatMeasure(r.BodyLength),
			formatMeasure(r.Height),
			formatMeasure(r.ChestWidth),
			formatMeasure(r.RumpAngle),
			strconv.Itoa(r.ATCScore),
			strconv.FormatBool(r.Synced),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatMeasure keeps one decimal on whole numbers: 120 -> "120.0"
func formatMeasure(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
