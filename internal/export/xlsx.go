// Package export renders a built ledger entry as an XLSX workbook so the
// operator can review the movements before posting.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/tlacroix/receiptledger/internal/ledger"
)

// EntryXLSX returns a one-sheet workbook with the entry header and one
// row per movement, plus a totals row.
func EntryXLSX(entry *ledger.Entry) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Entry"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet excelize creates.
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, "Journal")
	write(2, 1, entry.Journal)
	write(3, 1, "Period")
	write(4, 1, fmt.Sprintf("%04d-%02d", entry.Year, entry.Month))
	write(5, 1, "Reference")
	write(6, 1, entry.Reference)

	headers := []string{"Day", "Invoice No", "Account", "Label", "Debit", "Credit", "Tax Code"}
	for i, h := range headers {
		write(i+1, 3, h)
	}

	row := 4
	for _, l := range entry.Lines {
		write(1, row, l.Day)
		write(2, row, l.InvoiceNumber)
		write(3, row, l.Account)
		write(4, row, l.Label)
		if l.Debit.IsPositive() {
			write(5, row, l.Debit.StringFixed(2))
		}
		if l.Credit.IsPositive() {
			write(6, row, l.Credit.StringFixed(2))
		}
		write(7, row, l.TaxCode)
		row++
	}

	write(4, row, "Totals")
	write(5, row, entry.TotalDebit().StringFixed(2))
	write(6, row, entry.TotalCredit().StringFixed(2))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
