package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tlacroix/receiptledger/internal/common"
)

func dec(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func baseParams() BuildParams {
	return BuildParams{
		Journal:             "AC",
		ReferenceID:         "GED-42",
		DocumentDate:        "2024-05-12",
		TicketNumber:        "T-4521",
		SupplierAccount:     "FDIVERS",
		PayeeLabel:          "BRICO DEPOT",
		ChargesAccount:      "60630020",
		TaxCode:             "TVA20",
		TaxLiabilityAccount: "44566200",
		TotalTTC:            dec("120.00"),
		TotalHT:             dec("100.00"),
		TaxAmount:           dec("20.00"),
	}
}

func TestBuildThreeLineEntry(t *testing.T) {
	entry, err := Build(baseParams())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(entry.Lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(entry.Lines))
	}
	if entry.Journal != "AC" || entry.Month != 5 || entry.Year != 2024 {
		t.Errorf("header = %s %d/%d", entry.Journal, entry.Month, entry.Year)
	}

	supplier, charges, tax := entry.Lines[0], entry.Lines[1], entry.Lines[2]
	if supplier.Account != "FDIVERS" || supplier.Credit.StringFixed(2) != "120.00" || !supplier.Debit.IsZero() {
		t.Errorf("supplier line wrong: %+v", supplier)
	}
	if charges.Account != "60630020" || charges.Debit.StringFixed(2) != "100.00" || charges.TaxCode != "TVA20" {
		t.Errorf("charges line wrong: %+v", charges)
	}
	if tax.Account != "44566200" || tax.Debit.StringFixed(2) != "20.00" {
		t.Errorf("tax line wrong: %+v", tax)
	}
	for i, l := range entry.Lines {
		if l.Day != 12 {
			t.Errorf("line %d day = %d, want 12", i, l.Day)
		}
		if l.Credit.IsPositive() == l.Debit.IsPositive() {
			t.Errorf("line %d must have exactly one of credit/debit: %+v", i, l)
		}
	}

	if !entry.TotalCredit().Equal(entry.TotalDebit()) {
		t.Errorf("unbalanced: credit %s debit %s", entry.TotalCredit(), entry.TotalDebit())
	}
}

func TestBuildDerivesTaxFromTotals(t *testing.T) {
	p := baseParams()
	p.TaxAmount = nil // derive as TTC - HT
	entry, err := Build(p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entry.Lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(entry.Lines))
	}
	if entry.Lines[2].Debit.StringFixed(2) != "20.00" {
		t.Errorf("derived tax = %s, want 20.00", entry.Lines[2].Debit)
	}
	if !entry.TotalCredit().Equal(entry.TotalDebit()) {
		t.Errorf("unbalanced: credit %s debit %s", entry.TotalCredit(), entry.TotalDebit())
	}
}

func TestBuildNegativeDerivedTaxMeansNoTaxLine(t *testing.T) {
	p := baseParams()
	p.TaxAmount = nil
	p.TotalTTC = dec("100.00")
	p.TotalHT = dec("120.00")
	entry, err := Build(p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entry.Lines) != 2 {
		t.Fatalf("lines = %d, want 2 (inconsistent totals, no tax line)", len(entry.Lines))
	}
}

func TestBuildZeroTaxTwoLines(t *testing.T) {
	p := baseParams()
	p.TotalTTC = dec("100.00")
	p.TotalHT = dec("100.00")
	p.TaxAmount = dec("0")
	p.TaxCode = ""
	p.TaxLiabilityAccount = ""
	entry, err := Build(p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entry.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(entry.Lines))
	}
	if entry.Lines[1].TaxCode != "" {
		t.Errorf("zero-rate entry must carry no tax code, got %q", entry.Lines[1].TaxCode)
	}
	if !entry.TotalCredit().Equal(entry.TotalDebit()) {
		t.Errorf("unbalanced: credit %s debit %s", entry.TotalCredit(), entry.TotalDebit())
	}
}

func TestBuildFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BuildParams)
	}{
		{"bad date", func(p *BuildParams) { p.DocumentDate = "2024-02-31" }},
		{"unparseable date", func(p *BuildParams) { p.DocumentDate = "12/05/2024" }},
		{"missing ttc", func(p *BuildParams) { p.TotalTTC = nil }},
		{"missing ht", func(p *BuildParams) { p.TotalHT = nil }},
		{"missing journal", func(p *BuildParams) { p.Journal = "" }},
		{"missing supplier account", func(p *BuildParams) { p.SupplierAccount = "" }},
		{"missing charges account", func(p *BuildParams) { p.ChargesAccount = "" }},
		{"tax without liability account", func(p *BuildParams) { p.TaxLiabilityAccount = "" }},
		{"unbalanced amounts", func(p *BuildParams) { p.TotalHT = dec("90.00") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams()
			tt.mutate(&p)
			if _, err := Build(p); err == nil {
				t.Fatal("expected failure")
			} else if !errors.Is(err, common.ErrValidation) {
				t.Errorf("error not a validation error: %v", err)
			}
		})
	}
}

func TestBuildRoundsToTwoDecimals(t *testing.T) {
	p := baseParams()
	p.TotalTTC = dec("120.004")
	p.TotalHT = dec("100.001")
	p.TaxAmount = dec("20.003")
	entry, err := Build(p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if entry.Lines[0].Credit.StringFixed(2) != "120.00" {
		t.Errorf("credit = %s", entry.Lines[0].Credit)
	}
	if !entry.TotalCredit().Equal(entry.TotalDebit()) {
		t.Errorf("unbalanced after rounding: credit %s debit %s", entry.TotalCredit(), entry.TotalDebit())
	}
}

func TestWithReferenceDoesNotMutate(t *testing.T) {
	entry, err := Build(baseParams())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ref := entry.WithReference("GED-99")
	if ref.Reference != "GED-99" {
		t.Errorf("reference = %q", ref.Reference)
	}
	if entry.Reference == "GED-99" {
		t.Error("original entry mutated")
	}
}
