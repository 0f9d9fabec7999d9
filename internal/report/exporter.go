package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wb/parser/internal/domain"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Exporter writes accumulated report rows to a spreadsheet and returns a
// location handle for delivery.
type Exporter interface {
	Export(rows []domain.ReportRow, name string) (string, error)
}

// Deliverer hands a finished report to the user.
type Deliverer interface {
	Deliver(location string, userID int64) error
}

type xlsxExporter struct {
	dir string
}

func NewXLSXExporter(dir string) Exporter {
	return &xlsxExporter{dir: dir}
}

var nameSanitizer = strings.NewReplacer("/", "-", "\\", "-", " ", "_")

func (e *xlsxExporter) Export(rows []domain.ReportRow, name string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", e.dir, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, header := range []string{"Keyword", "Products", "Monthly frequency"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, row := range rows {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), row.Term)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+2), row.ProductCount)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", i+2), row.MonthlyFrequency)
	}

	location := filepath.Join(e.dir, nameSanitizer.Replace(name)+".xlsx")
	if err := f.SaveAs(location); err != nil {
		return "", fmt.Errorf("failed to save report %s: %w", location, err)
	}

	log.Infof("📊 Exported %d rows to %s", len(rows), location)
	return location, nil
}

// Preview renders the first rows as a text table for the final chat message.
func Preview(rows []domain.ReportRow, limit int) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Keyword", "Products", "Freq/mo"})
	for i, row := range rows {
		if i >= limit {
			break
		}
		t.AppendRow(table.Row{row.Term, row.ProductCount, row.MonthlyFrequency})
	}
	return t.Render()
}

// LogDeliverer just logs the report location, used when no chat transport
// is configured.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(location string, userID int64) error {
	log.Infof("📤 Report for user %d ready at %s", userID, location)
	return nil
}
