package categorize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/onebook-ledger/internal/domain"
)

// promptItem is the per-entry payload the model sees.
type promptItem struct {
	Index        int    `json:"index"`
	Summary      string `json:"summary"`
	Counterparty string `json:"counterparty,omitempty"`
	Description  string `json:"description,omitempty"`
	Direction    string `json:"direction,omitempty"`
	Amount       string `json:"amount"`
}

// buildTaxonomyPrompt lists every category the model may assign, code first
// and display label second.
func buildTaxonomyPrompt() string {
	var b strings.Builder
	b.WriteString("Use ONLY the following category codes:\n\n")
	for _, t := range domain.TransactionTypes() {
		b.WriteString("  - " + string(t) + " (" + t.Label() + ")\n")
	}

	b.WriteString("\nCATEGORY ASSIGNMENT RULES:\n")
	b.WriteString("1. Category must be EXACTLY one of the codes shown above, never the label.\n")
	b.WriteString("2. Use the summary first, then the counterparty and description.\n")
	b.WriteString("3. Bank channel prefixes such as \"支付宝-\" or \"财付通-\" name the payment rail, not the merchant.\n")
	b.WriteString("4. If you are unsure, use \"unknown\".\n")
	return b.String()
}

// buildPrompt assembles the full instruction for one batch of entries.
func buildPrompt(items []promptItem) (string, error) {
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("buildPrompt: marshal entries: %w", err)
	}

	basePrompt :=
		"You categorize personal finance transactions exported from Chinese payment apps and banks.\n\n" +
			"Task:\n" +
			"- Assign one category to EVERY transaction in the input array.\n" +
			"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"- Output a JSON array of objects with fields \"index\" (number, copied from input) and \"category\" (string).\n\n"

	rulesPrompt :=
		"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Output must begin with \"[\" and end with \"]\".\n"

	return basePrompt + buildTaxonomyPrompt() + "\nTransactions:\n" + string(payload) + "\n\n" + rulesPrompt, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
