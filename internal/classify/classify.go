// Package classify derives advisory category and VAT-rate suggestions
// from extracted receipt data. Nothing here is authoritative: the
// operator confirms or overrides every field before an entry is built.
package classify

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tlacroix/receiptledger/internal/accounts"
)

// Suggestion is the advisory output of the classifier. Category and
// VatRate may be empty when no signal was confident enough.
type Suggestion struct {
	Category        accounts.Category `json:"category,omitempty"`
	SupplierAccount string            `json:"supplier_account"`
	VatRate         string            `json:"vat_rate,omitempty"`
}

// Keyword sets per category, checked in this priority order. First
// matching set wins.
var keywordSets = []struct {
	category accounts.Category
	vatRate  string
	terms    []string
}{
	{accounts.RepasPro, "10", []string{"restaurant", "brasserie", "bistro", "pizzeria", "traiteur", "repas", "dejeuner", "déjeuner", "menu", "café", "cafe"}},
	{accounts.Carburant, "20", []string{"carburant", "gazole", "gasoil", "diesel", "essence", "sp95", "sp98", "e85", "station", "total energies", "totalenergies", "esso", "avia"}},
	{accounts.Parking, "20", []string{"parking", "stationnement", "horodateur", "parcmetre", "parcmètre", "indigo", "effia"}},
	{accounts.Peages, "20", []string{"peage", "péage", "autoroute", "vinci", "aprr", "sanef", "telepeage", "télépéage", "ulys"}},
}

// Ratio bands for the VAT guesser. tax/pre-tax within the tolerance of a
// band's nominal ratio classifies as that rate.
var ratioBands = []struct {
	rate      string
	nominal   decimal.Decimal
	tolerance decimal.Decimal
}{
	{"20", decimal.NewFromFloat(0.20), decimal.NewFromFloat(0.03)},
	{"10", decimal.NewFromFloat(0.10), decimal.NewFromFloat(0.02)},
}

// Suggest combines both signal sources. The ratio-based rate, when it
// yields one, takes precedence over the keyword-based rate; the
// keyword-based category always stands since the ratio guesser never
// proposes a category.
func Suggest(merchant string, keywords []string, ht, tva *decimal.Decimal) Suggestion {
	s := FromKeywords(merchant, keywords)
	if rate, ok := GuessVatRate(ht, tva); ok {
		s.VatRate = rate
	}
	return s
}

// FromKeywords scans a case-folded concatenation of the merchant name
// and the extracted keywords for membership in the fixed keyword sets.
func FromKeywords(merchant string, keywords []string) Suggestion {
	haystack := strings.ToLower(merchant)
	for _, k := range keywords {
		haystack += " " + strings.ToLower(k)
	}

	for _, set := range keywordSets {
		for _, term := range set.terms {
			if strings.Contains(haystack, term) {
				return Suggestion{
					Category:        set.category,
					SupplierAccount: accounts.DefaultSupplierAccount,
					VatRate:         set.vatRate,
				}
			}
		}
	}
	return Suggestion{SupplierAccount: accounts.DefaultSupplierAccount}
}

// GuessVatRate classifies the tax/pre-tax ratio. Only evaluated when the
// pre-tax amount is positive and the tax amount is non-negative; a ratio
// outside every band yields no guess.
func GuessVatRate(ht, tva *decimal.Decimal) (string, bool) {
	if ht == nil || tva == nil {
		return "", false
	}
	if !ht.IsPositive() || tva.IsNegative() {
		return "", false
	}
	if tva.IsZero() {
		return "0", true
	}

	ratio := tva.Div(*ht)
	for _, band := range ratioBands {
		if ratio.Sub(band.nominal).Abs().LessThanOrEqual(band.tolerance) {
			return band.rate, true
		}
	}
	return "", false
}
