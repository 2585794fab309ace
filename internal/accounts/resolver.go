package accounts

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tlacroix/receiptledger/internal/common"
)

// DefaultSupplierAccount is the collective supplier account credited when
// no dedicated supplier account applies.
const DefaultSupplierAccount = "FDIVERS"

//go:embed accounts.yaml
var accountsYAML []byte

// Resolver is the total mapping (category, VAT rate) -> charges account.
// Pairs absent from the table are invalid combinations.
type Resolver struct {
	grid map[Category]map[string]string
}

// NewResolver loads the embedded account grid. It fails loudly on a
// malformed table or on entries referencing unknown categories or rates,
// so a bad edit to accounts.yaml cannot ship silently.
func NewResolver() (*Resolver, error) {
	raw := map[string]map[string]string{}
	if err := yaml.Unmarshal(accountsYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse accounts table: %w", err)
	}

	grid := make(map[Category]map[string]string, len(raw))
	for cat, rates := range raw {
		key, ok := CanonicalCategory(cat)
		if !ok {
			return nil, fmt.Errorf("accounts table: unknown category %q", cat)
		}
		grid[key] = map[string]string{}
		for rate, account := range rates {
			if _, err := LookupVat(rate); err != nil {
				return nil, fmt.Errorf("accounts table: category %q: unknown rate %q", cat, rate)
			}
			if account == "" {
				return nil, fmt.Errorf("accounts table: category %q rate %q: empty account", cat, rate)
			}
			grid[key][rate] = account
		}
	}
	return &Resolver{grid: grid}, nil
}

// Resolve returns the charges account for a (category, rate) pair.
// Unknown categories, unknown rates and unmapped pairs all fail with a
// field-named validation error; there is no default account.
func (r *Resolver) Resolve(category Category, rate string) (string, error) {
	if _, err := LookupVat(rate); err != nil {
		return "", err
	}
	rates, ok := r.grid[category]
	if !ok {
		return "", common.NewValidationError("category", "unknown category "+string(category))
	}
	account, ok := rates[rate]
	if !ok {
		return "", common.NewValidationError("category", fmt.Sprintf("no account for category %s at rate %s%%", category, rate))
	}
	return account, nil
}

// Pairs lists every mapped (category, rate) combination, mostly for
// admin display and tests.
func (r *Resolver) Pairs() map[Category][]string {
	out := make(map[Category][]string, len(r.grid))
	for cat, rates := range r.grid {
		for rate := range rates {
			out[cat] = append(out[cat], rate)
		}
	}
	return out
}
