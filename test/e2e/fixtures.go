package e2e

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Skynet843/IntentSearch/internal/models"
)

// XLSX renders products into the first sheet with an id/text header row.
func XLSX(products []models.Product) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"ID", "Text"}); err != nil {
		return nil, err
	}
	for i, p := range products {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &[]interface{}{p.ID, p.Text}); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
