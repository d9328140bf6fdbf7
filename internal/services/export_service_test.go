package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []*models.AnimalRecord {
	return []*models.AnimalRecord{
		{
			ID: 2, AnimalID: "ANIMAL_B2", Date: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
			ImagePath: "images/CATTLE_2024-03-05_14-07-09.jpg", BodyLength: 132, Height: 141.5,
			ChestWidth: 61, RumpAngle: 18, ATCScore: 91, Synced: true,
		},
		{
			ID: 1, AnimalID: "ANIMAL_A1", Date: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			ImagePath: "images/CATTLE_2024-01-02_03-04-05.jpg", BodyLength: 101, Height: 120,
			ChestWidth: 50, RumpAngle: 10, ATCScore: 70,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	t.Run("empty set is header only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, nil))
		assert.Equal(t, "ID,Animal ID,Date,Image Path,Body Length,Height,Chest Width,Rump Angle,ATC Score,Synced\n", buf.String())
	})

	t.Run("rows", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, sampleRecords()))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"2", "ANIMAL_B2", "Mar 05, 2024 14:07", "images/CATTLE_2024-03-05_14-07-09.jpg",
			"132.0", "141.5", "61.0", "18.0", "91", "true"}, rows[1])
		assert.Equal(t, "false", rows[2][9])
	})
}

func TestJSONExportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRecords()))
	assert.Contains(t, buf.String(), `"date": "2024-03-05 14:07:09"`)

	parsed, err := ParseJSONExport(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), parsed)

	_, err = ParseJSONExport(strings.NewReader(`[{"id":1,"date":"05/03/2024"}]`))
	assert.Error(t, err)
}

func TestWritePDFReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDFReport(&buf, sampleRecords(), time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), ""))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	many := make([]*models.AnimalRecord, 0, 80)
	for i := 0; i < 80; i++ {
		many = append(many, sampleRecords()[i%2])
	}
	buf.Reset()
	require.NoError(t, WritePDFReport(&buf, many, time.Now(), ""))

	err := WritePDFReport(io.Discard, nil, time.Now(), filepath.Join(t.TempDir(), "missing.ttf"))
	assert.Error(t, err)
}

func TestWritePDFReport_HindiWithoutFont(t *testing.T) {
	pdf, err := buildPDFReport(sampleRecords(), time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	pdf.SetCompression(false)

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	out := buf.String()
	assert.Contains(t, out, "("+reportTitle+")")
	assert.Contains(t, out, "("+reportTitleLatin+")")
	for _, c := range pdfColumns {
		assert.Contains(t, out, "("+c.hindiLatin+")", c.english)
	}
}

func setupExports(t *testing.T) (*ExportService, *repository.AnimalRecordRepository, *fakeClock) {
	t.Helper()
	base := t.TempDir()
	db, err := repository.NewSQLiteDB(filepath.Join(base, "export.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewAnimalRecordRepository(db)
	clock := &fakeClock{now: time.Date(2024, 8, 15, 10, 20, 30, 0, time.UTC)}
	svc, err := NewExportService(filepath.Join(base, "exports"), repo, ExportOptions{Clock: clock})
	require.NoError(t, err)
	return svc, repo, clock
}

func TestExportService(t *testing.T) {
	ctx := context.Background()

	t.Run("json export of stored records", func(t *testing.T) {
		svc, repo, _ := setupExports(t)
		for _, r := range sampleRecords() {
			r.ID = 0
			_, err := repo.Add(ctx, r)
			require.NoError(t, err)
		}

		result, err := svc.Export(ctx, models.FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, "cattle_records_2024-08-15_10-20-30.json", result.FileName)
		assert.Equal(t, 2, result.RecordCount)
		assert.Equal(t, "Data exported to JSON successfully! File saved at: "+result.Path, result.Message)
		assert.Len(t, result.SHA256, 64)

		f, format, err := svc.OpenExport(result.FileName)
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, models.FormatJSON, format)

		parsed, err := ParseJSONExport(f)
		require.NoError(t, err)
		require.Len(t, parsed, 2)
		assert.Equal(t, "ANIMAL_B2", parsed[0].AnimalID)
	})

	t.Run("same second gets a suffix", func(t *testing.T) {
		svc, _, _ := setupExports(t)

		first, err := svc.Export(ctx, models.FormatCSV)
		require.NoError(t, err)
		second, err := svc.Export(ctx, models.FormatCSV)
		require.NoError(t, err)

		assert.Equal(t, "cattle_records_2024-08-15_10-20-30.csv", first.FileName)
		assert.Equal(t, "cattle_records_2024-08-15_10-20-30_1.csv", second.FileName)

		data, err := os.ReadFile(first.Path)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(string(data), "\n"))
	})

	t.Run("pdf message and listing", func(t *testing.T) {
		svc, _, clock := setupExports(t)

		pdf, err := svc.Export(ctx, models.FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, "Data exported to PDF successfully! Bilingual report saved at: "+pdf.Path, pdf.Message)

		clock.Advance(time.Minute)
		_, err = svc.Export(ctx, models.FormatJSON)
		require.NoError(t, err)

		files, err := svc.ListExports()
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("unsupported format", func(t *testing.T) {
		svc, _, _ := setupExports(t)
		_, err := svc.Export(ctx, models.ExportFormat("xml"))
		assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
	})

	t.Run("write failure is reported with the format", func(t *testing.T) {
		svc, _, _ := setupExports(t)
		require.NoError(t, os.RemoveAll(svc.dir))

		_, err := svc.Export(ctx, models.FormatCSV)
		var failure *models.ExportFailure
		require.True(t, errors.As(err, &failure))
		assert.True(t, strings.HasPrefix(err.Error(), "Error exporting to CSV: "))
	})

	t.Run("etag follows the published checksum", func(t *testing.T) {
		svc, _, _ := setupExports(t)
		result, err := svc.Export(ctx, models.FormatCSV)
		require.NoError(t, err)

		etag, fresh, err := svc.ExportETag(result.FileName, "")
		require.NoError(t, err)
		assert.Equal(t, `"sha256:`+result.SHA256+`"`, etag)
		assert.False(t, fresh)

		_, fresh, err = svc.ExportETag(result.FileName, `W/"other", `+etag)
		require.NoError(t, err)
		assert.True(t, fresh)

		_, fresh, err = svc.ExportETag(result.FileName, `"`+strings.ToUpper(result.SHA256)+`"`)
		require.NoError(t, err)
		assert.True(t, fresh)

		_, _, err = svc.ExportETag("../export.db", "")
		assert.ErrorIs(t, err, models.ErrInvalidExportName)
		_, _, err = svc.ExportETag("cattle_records_2020-01-01_00-00-00.csv", "")
		assert.ErrorIs(t, err, models.ErrExportNotFound)
	})

	t.Run("open refuses foreign names", func(t *testing.T) {
		svc, _, _ := setupExports(t)

		for _, name := range []string{"../export.db", "notes.txt", "cattle_records_x/../../a.json"} {
			_, _, err := svc.OpenExport(name)
			assert.ErrorIs(t, err, models.ErrInvalidExportName, name)
		}
		_, _, err := svc.OpenExport("cattle_records_2020-01-01_00-00-00.csv")
		assert.ErrorIs(t, err, models.ErrExportNotFound)
	})
}
