package models

import (
	"strings"
	"time"
)

// ExportFormat is a supported export file type
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatPDF  ExportFormat = "pdf"
)

// ParseExportFormat accepts json, csv or pdf in any case
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatPDF:
		return f, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ContentType is the MIME type used when serving the file
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// ExportResult describes a written export file
type ExportResult struct {
	FileName    string       `json:"fileName"`
	Path        string       `json:"path"`
	Format      ExportFormat `json:"format"`
	RecordCount int          `json:"recordCount"`
	Size        int64        `json:"size"`
	SHA256      string       `json:"sha256"`
	CreatedAt   time.Time    `json:"createdAt"`
	Message     string       `json:"message"`
}

// ExportFile is an existing file in the export directory
type ExportFile struct {
	FileName  string       `json:"fileName"`
	Format    ExportFormat `json:"format"`
	Size      int64        `json:"size"`
	CreatedAt time.Time    `json:"createdAt"`
}

type ExportError struct {
	Message string
}

func (e ExportError) Error() string {
	return e.Message
}

var (
	ErrUnsupportedFormat = ExportError{"unsupported export format"}
	ErrExportNotFound    = ExportError{"export file not found"}
	ErrInvalidExportName = ExportError{"invalid export file name"}
)

// ExportFailure is a failed export; its message names the format
type ExportFailure struct {
	Format ExportFormat
	Err    error
}

func (e *ExportFailure) Error() string {
	return "Error exporting to " + strings.ToUpper(string(e.Format)) + ": " + e.Err.Error()
}

func (e *ExportFailure) Unwrap() error {
	return e.Err
}
