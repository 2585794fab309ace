package accounts

import "strings"

// Category is a spending category key. The set is fixed; anything else
// is rejected at validation time.
type Category string

const (
	PetitesFournitures Category = "petites_fournitures"
	Carburant          Category = "carburant"
	RepasPro           Category = "repas_pro"
	Repas              Category = "repas"
	Papeterie          Category = "papeterie"
	Peages             Category = "peages"
	Parking            Category = "parking"
)

var allCategories = []Category{
	PetitesFournitures,
	Carburant,
	RepasPro,
	Repas,
	Papeterie,
	Peages,
	Parking,
}

// Categories returns the category keys as strings.
func Categories() []string {
	result := make([]string, len(allCategories))
	for i, c := range allCategories {
		result[i] = string(c)
	}
	return result
}

// CanonicalCategory folds case/whitespace and reports whether the input
// names a known category.
func CanonicalCategory(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, c := range allCategories {
		if normalized == string(c) {
			return c, true
		}
	}
	return "", false
}
