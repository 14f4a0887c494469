package reporting

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt holds what is printed on a payment receipt.
type Receipt struct {
	PaymentID        string
	ServiceRequestID string
	PatientName      string
	ClinicName       string
	ServiceName      string
	Amount           int64
	Method           string
	Status           string
	TotalPrice       *int64
	InsuranceCovered *int64
	PatientPayable   *int64
	PaidAt           time.Time
}

// PaymentReceipt renders r as a single-page A4 PDF.
func PaymentReceipt(r Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, "Issued by ClinicHub on "+r.PaidAt.Format("02/01/2006 15:04"), "", 0, "L", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, "Payment Receipt", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	lines := [][2]string{
		{"Receipt no.", r.PaymentID},
		{"Request", r.ServiceRequestID},
		{"Patient", r.PatientName},
		{"Clinic", r.ClinicName},
		{"Service", r.ServiceName},
		{"Date", r.PaidAt.Format("02/01/2006 15:04")},
		{"Method", r.Method},
		{"Status", r.Status},
	}
	for _, l := range lines {
		if l[1] == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(45, 8, l[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, l[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFillColor(230, 243, 255)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(95, 9, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 9, "Amount", "1", 1, "R", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	for _, row := range []struct {
		label string
		value *int64
	}{
		{"Total price", r.TotalPrice},
		{"Insurance covered", r.InsuranceCovered},
		{"Patient payable", r.PatientPayable},
	} {
		if row.value == nil {
			continue
		}
		pdf.CellFormat(95, 8, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, FormatAmount(*row.value), "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(95, 10, "Amount paid", "1", 0, "L", false, 0, "")
	pdf.CellFormat(0, 10, FormatAmount(r.Amount), "1", 1, "R", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatAmount groups the digits of a whole-unit amount by thousands.
func FormatAmount(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
