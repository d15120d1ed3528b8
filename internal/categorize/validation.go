package categorize

import (
	"fmt"
	"strings"

	"github.com/dvloznov/onebook-ledger/internal/domain"
)

// ValidateCategory resolves a model answer to a taxonomy member. Codes are
// matched case-insensitively and display labels exactly. "unknown" is a
// valid answer; anything outside the taxonomy is an error.
func ValidateCategory(category string) (domain.TransactionType, error) {
	t, ok := domain.ParseTransactionType(category)
	if !ok {
		return domain.TypeUnknown, fmt.Errorf("invalid category: %q (normalized: %q)", category, normalizeCategory(category))
	}
	return t, nil
}

// normalizeCategory lowercases and trims a category code for comparison.
func normalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
