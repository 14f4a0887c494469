// Package reporting renders exports and printable documents: spreadsheets of
// service requests and PDF payment receipts.
package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const serviceRequestSheet = "Service Requests"

// ServiceRequestRow is one line of the service request export.
type ServiceRequestRow struct {
	ID               string
	PatientName      string
	PatientPhone     string
	ClinicName       string
	ServiceName      string
	ProviderName     string
	Status           string
	PreferredTime    *time.Time
	TotalPrice       *int64
	InsuranceCovered *int64
	PatientPayable   *int64
	CreatedAt        time.Time
}

var serviceRequestHeaders = []string{
	"ID", "Patient", "Phone", "Clinic", "Service", "Provider", "Status",
	"Preferred Time", "Total Price", "Insurance Covered", "Patient Payable", "Created At",
}

var serviceRequestWidths = []float64{38, 24, 16, 24, 24, 24, 12, 20, 14, 18, 16, 20}

const timeLayout = "2006-01-02 15:04"

// ServiceRequestWorkbook renders rows as an .xlsx file with a styled, frozen
// header row.
func ServiceRequestWorkbook(rows []ServiceRequestRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(serviceRequestSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, header := range serviceRequestHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(serviceRequestSheet, cell, header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(serviceRequestSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("set header style: %w", err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(serviceRequestSheet, col, col, serviceRequestWidths[i]); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, r := range rows {
		values := []any{
			r.ID, r.PatientName, r.PatientPhone, r.ClinicName, r.ServiceName, r.ProviderName, r.Status,
			formatTime(r.PreferredTime), amount(r.TotalPrice), amount(r.InsuranceCovered), amount(r.PatientPayable),
			r.CreatedAt.Format(timeLayout),
		}
		for j, v := range values {
			if v == nil || v == "" {
				continue
			}
			if err := setCellValue(f, serviceRequestSheet, j+1, i+2, v); err != nil {
				return nil, fmt.Errorf("set cell at row %d, col %d: %w", i+2, j+1, err)
			}
		}
	}

	if err := f.SetPanes(serviceRequestSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

func amount(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
