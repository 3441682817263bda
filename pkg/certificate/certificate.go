package certificate

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// Data is what goes on a certificate.
type Data struct {
	Number       string
	Recipient    string
	Department   string
	SessionTitle string
	Percentage   float64
	IssuedAt     time.Time
}

// Renderer draws certificates as landscape A4 PDFs.
type Renderer struct {
	issuer    string
	signatory string
}

// NewRenderer creates a Renderer signed by issuer and signatory.
func NewRenderer(issuer, signatory string) *Renderer {
	return &Renderer{issuer: issuer, signatory: signatory}
}

// FileKey storage key of a certificate PDF.
func FileKey(number string, issuedAt time.Time) string {
	return fmt.Sprintf("certificates/%s/%s.pdf", issuedAt.Format("2006/01"), number)
}

// Render returns the PDF bytes.
func (r *Renderer) Render(d Data) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate "+d.Number, true)
	pdf.SetAuthor(r.issuer, true)
	pdf.SetCreator(r.issuer, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	w, h := pdf.GetPageSize()

	// frame
	pdf.SetDrawColor(30, 64, 120)
	pdf.SetLineWidth(2)
	pdf.Rect(10, 10, w-20, h-20, "D")
	pdf.SetLineWidth(0.5)
	pdf.Rect(14, 14, w-28, h-28, "D")

	pdf.SetTextColor(30, 64, 120)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(0, 30)
	pdf.CellFormat(w, 8, tr(r.issuer), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 34)
	pdf.SetXY(0, 45)
	pdf.CellFormat(w, 16, "Certificate of Achievement", "", 1, "C", false, 0, "")

	pdf.SetTextColor(60, 60, 60)
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetXY(0, 72)
	pdf.CellFormat(w, 8, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 28)
	pdf.SetXY(0, 84)
	pdf.CellFormat(w, 14, tr(d.Recipient), "", 1, "C", false, 0, "")

	if d.Department != "" {
		pdf.SetFont("Helvetica", "I", 12)
		pdf.SetXY(0, 99)
		pdf.CellFormat(w, 6, tr(d.Department), "", 1, "C", false, 0, "")
	}

	pdf.SetTextColor(60, 60, 60)
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetXY(0, 112)
	pdf.CellFormat(w, 8, "has successfully completed the CRISP assessment", "", 1, "C", false, 0, "")

	pdf.SetTextColor(30, 64, 120)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(0, 124)
	pdf.CellFormat(w, 10, tr(d.SessionTitle), "", 1, "C", false, 0, "")

	pdf.SetTextColor(60, 60, 60)
	pdf.SetFont("Helvetica", "", 13)
	pdf.SetXY(0, 138)
	pdf.CellFormat(w, 7, fmt.Sprintf("with a score of %.2f%%", d.Percentage), "", 1, "C", false, 0, "")

	// signature line
	pdf.SetDrawColor(60, 60, 60)
	pdf.SetLineWidth(0.3)
	pdf.Line(w/2-45, h-45, w/2+45, h-45)
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(0, h-43)
	pdf.CellFormat(w, 6, tr(r.signatory), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(20, h-26)
	pdf.CellFormat(120, 5, "Certificate No. "+d.Number, "", 0, "L", false, 0, "")
	pdf.SetXY(w-140, h-26)
	pdf.CellFormat(120, 5, "Issued "+d.IssuedAt.Format("2 January 2006"), "", 0, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate %s: %w", d.Number, err)
	}
	return buf.Bytes(), nil
}
