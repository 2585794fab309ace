// Package ledger builds balanced accounting documents and transmits them
// to the external ledger API.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tlacroix/receiptledger/internal/common"
	"github.com/tlacroix/receiptledger/internal/money"
)

// Line is one debit or credit movement. Exactly one of Credit/Debit is
// non-zero per line.
type Line struct {
	Day           int             `json:"day"`
	PieceNumber   string          `json:"piece_number,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Account       string          `json:"account"`
	Label         string          `json:"label"`
	Credit        decimal.Decimal `json:"credit"`
	Debit         decimal.Decimal `json:"debit"`
	TaxCode       string          `json:"tax_code,omitempty"`
}

// Entry is a balanced accounting document for one journal and period.
// Constructed once per submission and never mutated afterwards.
type Entry struct {
	Journal   string `json:"journal"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
	Reference string `json:"reference,omitempty"` // GED document id
	Lines     []Line `json:"lines"`
}

// WithReference returns a copy of the entry carrying the external
// document reference. The original stays untouched; entries are never
// mutated after construction.
func (e *Entry) WithReference(id string) *Entry {
	out := *e
	out.Reference = id
	out.Lines = append([]Line(nil), e.Lines...)
	return &out
}

// TotalCredit sums the credit side at 2 decimals.
func (e *Entry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return money.Round2(total)
}

// TotalDebit sums the debit side at 2 decimals.
func (e *Entry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return money.Round2(total)
}

// BuildParams carries the normalized, account-resolved inputs of one
// submission. Amounts are nil when absent.
type BuildParams struct {
	Journal             string
	ReferenceID         string
	DocumentDate        string // YYYY-MM-DD
	TicketNumber        string
	SupplierAccount     string
	PayeeLabel          string
	ChargesAccount      string
	TaxCode             string
	TaxLiabilityAccount string
	TotalTTC            *decimal.Decimal
	TotalHT             *decimal.Decimal
	TaxAmount           *decimal.Decimal
}

// Build assembles the 2- or 3-line entry:
//
//	line 1  credit TTC on the supplier account
//	line 2  debit  HT on the charges account (tax code when non-empty)
//	line 3  debit  tax on the liability account, only when tax > 0
//
// When TaxAmount is absent but both totals are present, tax is derived as
// TTC - HT; a negative derivation is treated as no tax rather than
// producing an inconsistent line. Postcondition: credits equal debits at
// 2 decimals — Build fails rather than emit an unbalanced document.
func Build(p BuildParams) (*Entry, error) {
	if p.Journal == "" {
		return nil, common.NewValidationError("journal", "missing")
	}
	if p.SupplierAccount == "" {
		return nil, common.NewValidationError("supplier_account", "missing")
	}
	if p.ChargesAccount == "" {
		return nil, common.NewValidationError("charges_account", "missing")
	}
	date, err := time.Parse("2006-01-02", p.DocumentDate)
	if err != nil {
		return nil, common.NewValidationError("document_date", "not a valid calendar date: "+p.DocumentDate)
	}
	if p.TotalTTC == nil {
		return nil, common.NewValidationError("total_ttc", "missing")
	}
	if p.TotalHT == nil {
		return nil, common.NewValidationError("total_ht", "missing")
	}

	ttc := money.Round2(*p.TotalTTC)
	ht := money.Round2(*p.TotalHT)

	tax := decimal.Zero
	if p.TaxAmount != nil {
		tax = money.Round2(*p.TaxAmount)
	} else {
		derived := ttc.Sub(ht)
		if derived.IsPositive() {
			tax = money.Round2(derived)
		}
	}
	if tax.IsNegative() {
		tax = decimal.Zero
	}

	entry := &Entry{
		Journal:   p.Journal,
		Month:     int(date.Month()),
		Year:      date.Year(),
		Reference: p.ReferenceID,
		Lines: []Line{
			{
				Day:           date.Day(),
				InvoiceNumber: p.TicketNumber,
				Account:       p.SupplierAccount,
				Label:         p.PayeeLabel,
				Credit:        ttc,
			},
			{
				Day:           date.Day(),
				InvoiceNumber: p.TicketNumber,
				Account:       p.ChargesAccount,
				Label:         p.PayeeLabel,
				Debit:         ht,
				TaxCode:       p.TaxCode,
			},
		},
	}

	if tax.IsPositive() {
		if p.TaxLiabilityAccount == "" {
			return nil, common.NewValidationError("tax_liability_account", "missing for non-zero tax amount")
		}
		entry.Lines = append(entry.Lines, Line{
			Day:           date.Day(),
			InvoiceNumber: p.TicketNumber,
			Account:       p.TaxLiabilityAccount,
			Label:         p.PayeeLabel,
			Debit:         tax,
		})
	}

	if !entry.TotalCredit().Equal(entry.TotalDebit()) {
		return nil, common.NewValidationError("amounts",
			"entry does not balance: credit "+entry.TotalCredit().StringFixed(2)+
				" != debit "+entry.TotalDebit().StringFixed(2))
	}
	return entry, nil
}
