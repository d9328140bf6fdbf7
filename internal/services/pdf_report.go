package services

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cattlebreed/server/internal/models"
	"github.com/go-pdf/fpdf"
)

const hindiFont = "NotoDevanagari"

// devanagariFontCandidates are common install locations of TTF fonts with
// Devanagari glyphs (fonts-noto-core, fonts-lohit-deva, fonts-freefont-ttf, Windows)
var devanagariFontCandidates = []string{
	"/usr/share/fonts/truetype/noto/NotoSansDevanagari-Regular.ttf",
	"/usr/share/fonts/noto/NotoSansDevanagari-Regular.ttf",
	"/usr/share/fonts/google-noto/NotoSansDevanagari-Regular.ttf",
	"/usr/share/fonts/truetype/lohit-devanagari/Lohit-Devanagari.ttf",
	"/usr/share/fonts/lohit-devanagari/Lohit-Devanagari.ttf",
	"/usr/share/fonts/truetype/freefont/FreeSans.ttf",
	"/usr/share/fonts/gnu-free/FreeSans.ttf",
	`C:\Windows\Fonts\mangal.ttf`,
}

// FindDevanagariFont returns the first installed Devanagari font, or ""
func FindDevanagariFont() string {
	for _, p := range devanagariFontCandidates {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

type pdfColumn struct {
	english string
	hindi   string
	// hindiLatin is the romanized label used when no Devanagari font is loaded
	hindiLatin string
	width      float64
	value      func(r *models.AnimalRecord) string
}

const (
	reportTitle      = "Cattle Breed Records Report"
	reportTitleHindi = "पशु नस्ल रिकॉर्ड रिपोर्ट"
	reportTitleLatin = "Pashu Nasl Record Report"
)

var pdfColumns = []pdfColumn{
	{"ID", "आईडी", "Aaidi", 14, func(r *models.AnimalRecord) string { return strconv.FormatInt(r.ID, 10) }},
	{"Animal ID", "पशु आईडी", "Pashu Aaidi", 38, func(r *models.AnimalRecord) string { return r.AnimalID }},
	{"Date", "तारीख", "Tareekh", 40, func(r *models.AnimalRecord) string { return r.Date.UTC().Format(exportCSVDate) }},
	{"Body Length", "शरीर की लंबाई", "Shareer ki Lambai", 28, func(r *models.AnimalRecord) string { return formatMeasure(r.BodyLength) }},
	{"Height", "ऊंचाई", "Oonchai", 26, func(r *models.AnimalRecord) string { return formatMeasure(r.Height) }},
	{"Chest Width", "छाती की चौड़ाई", "Chhati ki Chaudai", 28, func(r *models.AnimalRecord) string { return formatMeasure(r.ChestWidth) }},
	{"Rump Angle", "पुट्ठे का कोण", "Putthe ka Kon", 28, func(r *models.AnimalRecord) string { return formatMeasure(r.RumpAngle) }},
	{"ATC Score", "एटीसी स्कोर", "ATC Ank", 24, func(r *models.AnimalRecord) string { return strconv.Itoa(r.ATCScore) }},
	{"Synced", "सिंक", "Sink", 20, func(r *models.AnimalRecord) string {
		if r.Synced {
			return "Yes"
		}
		return "No"
	}},
}

// WritePDFReport renders a landscape table of records with Hindi labels under
// the English title and column headers. The Hindi is set in Devanagari from
// fontPath; without a font it is romanized in the core font.
func WritePDFReport(w io.Writer, records []*models.AnimalRecord, generated time.Time, fontPath string) error {
	pdf, err := buildPDFReport(records, generated, fontPath)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func buildPDFReport(records []*models.AnimalRecord, generated time.Time, fontPath string) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(reportTitle, true)
	pdf.SetCreator("cattlebreed-server", true)
	pdf.SetCreationDate(generated)
	pdf.AliasNbPages("")

	devanagari := fontPath != ""
	if devanagari {
		pdf.AddUTF8Font(hindiFont, "", fontPath)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("failed to load PDF font: %w", err)
		}
	}
	hindi := func(size float64) {
		if devanagari {
			pdf.SetFont(hindiFont, "", size)
		} else {
			pdf.SetFont("Helvetica", "I", size)
		}
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(43, 182, 115)
		pdf.SetTextColor(255, 255, 255)
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, 7, c.english, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		hindi(8)
		for _, c := range pdfColumns {
			label := c.hindiLatin
			if devanagari {
				label = c.hindi
			}
			pdf.CellFormat(c.width, 7, label, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, reportTitle, "", 1, "L", false, 0, "")
	hindi(14)
	if devanagari {
		pdf.CellFormat(0, 9, reportTitleHindi, "", 1, "L", false, 0, "")
	} else {
		pdf.CellFormat(0, 9, reportTitleLatin, "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated: "+generated.Format("Jan 02, 2006 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total records: %d", len(records)), "", 1, "L", false, 0, "")
	if len(records) > 0 {
		pdf.CellFormat(0, 6, fmt.Sprintf("Average ATC score: %.1f", averageScore(records)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	header()
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	pdf.SetFont("Helvetica", "", 9)
	for i, r := range records {
		if pdf.GetY()+7 > pageHeight-bottom-12 {
			pdf.AddPage()
			header()
			pdf.SetFont("Helvetica", "", 9)
		}
		fill := i%2 == 1
		pdf.SetFillColor(223, 246, 234)
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, 7, c.value(r), "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(records) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 8, "No records", "", 1, "L", false, 0, "")
	}

	return pdf, pdf.Error()
}

func averageScore(records []*models.AnimalRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0
	for _, r := range records {
		total += r.ATCScore
	}
	return float64(total) / float64(len(records))
}
