package services

import (
	"fmt"
	"io"
	"time"

	"agrimarket/internal/models"

	"github.com/xuri/excelize/v2"
)

// WritePriceReport renders the given observations as an XLSX workbook.
func WritePriceReport(points []models.PricePoint, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Prices"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"Commodity", "Market", "County", "Retail (KES/kg)", "Wholesale (KES/kg)", "Date", "Updated"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for row, pt := range points {
		values := []interface{}{
			pt.Commodity,
			pt.Market,
			pt.County,
			pt.Retail,
			pt.Wholesale,
			pt.Date.Format("2006-01-02"),
			pt.UpdatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
