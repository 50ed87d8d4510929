package pdfdoc

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/homeworkai/backend/internal/domain"
)

const (
	pageMargin = 15.0
	headerTop  = 8.0
)

type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render serializes a solution into an A4 document: a centered title,
// one bold heading per question and an answer plus workings block per
// part. The creation date is pinned so identical input yields identical
// bytes.
func (rn *Renderer) Render(sol domain.Solution) ([]byte, int, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCreationDate(time.Unix(0, 0))
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)

	doc.SetHeaderFunc(func() {
		if doc.PageNo() == 1 {
			return
		}
		doc.SetFont("Helvetica", "", 9)
		doc.SetTextColor(68, 68, 68)
		doc.SetXY(pageMargin, headerTop)
		doc.CellFormat(0, 5, sol.DocumentID, "", 0, "R", false, 0, "")
		doc.SetY(pageMargin)
	})

	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.SetTextColor(0, 0, 0)
	doc.CellFormat(0, 10, "Homework Solution", "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(85, 85, 85)
	doc.CellFormat(0, 6, "Document ID: "+sol.DocumentID, "", 1, "C", false, 0, "")
	doc.Ln(8)

	width, _ := doc.GetPageSize()
	usable := width - 2*pageMargin

	for _, q := range sol.Questions {
		doc.SetFont("Helvetica", "B", 14)
		doc.SetTextColor(0, 0, 0)
		doc.MultiCell(usable, 7, q.QID+" - "+q.QuestionText, "", "L", false)
		doc.Ln(2)

		for _, p := range q.Parts {
			doc.SetFont("Helvetica", "B", 12)
			doc.MultiCell(usable, 6, p.Label+" Answer: "+p.Answer, "", "L", false)

			doc.SetFont("Helvetica", "", 11)
			doc.SetTextColor(34, 34, 34)
			doc.MultiCell(usable, 5.5, p.Workings, "", "L", false)
			doc.SetTextColor(0, 0, 0)
			doc.Ln(3)
		}

		doc.Ln(4)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("render pdf: %w", err)
	}

	return buf.Bytes(), doc.PageCount(), nil
}
