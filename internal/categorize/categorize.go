// Package categorize assigns categories to entries the keyword classifier
// left as unknown, using a Gemini model constrained to the fixed taxonomy.
package categorize

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"google.golang.org/genai"
)

const (
	// DefaultModelName is the Gemini model used for categorization.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultBatchSize bounds how many entries go into one prompt.
	DefaultBatchSize = 50
)

// TextGenerator sends a prompt to a language model and returns its text.
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// Categorizer picks a category for each entry it is given. The result maps
// positions in entries to categories; positions it could not decide are
// absent.
type Categorizer interface {
	Categorize(ctx context.Context, entries []domain.Entry) (map[int]domain.TransactionType, error)
}

// GeminiClient is a TextGenerator backed by the genai SDK.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a genai client configured from the environment
// (GOOGLE_API_KEY, or GOOGLE_CLOUD_PROJECT with Vertex AI).
func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// GenerateText runs a single-turn text prompt.
func (g *GeminiClient) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("GenerateText: generate content: %w", err)
	}
	return resp.Text(), nil
}

// ModelCategorizer asks a language model for categories in batches.
type ModelCategorizer struct {
	Generator TextGenerator
	Model     string
	BatchSize int
}

var _ Categorizer = (*ModelCategorizer)(nil)

// NewModelCategorizer returns a categorizer with the default model and
// batch size.
func NewModelCategorizer(g TextGenerator) *ModelCategorizer {
	return &ModelCategorizer{Generator: g, Model: DefaultModelName, BatchSize: DefaultBatchSize}
}

// Categorize sends entries to the model batch by batch. Answers outside the
// taxonomy or for indexes that were not asked about are logged and dropped.
// A failed batch aborts the call.
func (c *ModelCategorizer) Categorize(ctx context.Context, entries []domain.Entry) (map[int]domain.TransactionType, error) {
	log := logger.FromContext(ctx)
	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	model := c.Model
	if model == "" {
		model = DefaultModelName
	}

	out := make(map[int]domain.TransactionType, len(entries))
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))

		items := make([]promptItem, 0, end-start)
		for i := start; i < end; i++ {
			e := entries[i]
			items = append(items, promptItem{
				Index:        i,
				Summary:      e.TransactionSummary,
				Counterparty: e.Counterparty,
				Description:  e.Description,
				Direction:    string(e.Direction),
				Amount:       e.Amount.String(),
			})
		}

		prompt, err := buildPrompt(items)
		if err != nil {
			return nil, err
		}

		raw, err := c.Generator.GenerateText(ctx, model, prompt)
		if err != nil {
			return nil, fmt.Errorf("Categorize: batch %d-%d: %w", start, end, err)
		}
		if raw == "" {
			return nil, fmt.Errorf("Categorize: batch %d-%d: empty response from model", start, end)
		}

		var answers []struct {
			Index    int    `json:"index"`
			Category string `json:"category"`
		}
		if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &answers); err != nil {
			return nil, fmt.Errorf("Categorize: unmarshal JSON: %w\nraw response: %s", err, raw)
		}

		for _, a := range answers {
			if a.Index < start || a.Index >= end {
				log.Warn().Int("index", a.Index).Msg("Categorize: answer for entry outside batch")
				continue
			}
			t, err := ValidateCategory(a.Category)
			if err != nil {
				log.Warn().Err(err).Int("index", a.Index).Msg("Categorize: discarding answer")
				continue
			}
			out[a.Index] = t
		}
	}
	return out, nil
}

// CategorizeUnknown fills in the category of entries still marked unknown
// and returns how many were changed. Entries the categorizer leaves
// undecided, or decides are unknown, keep TypeUnknown.
func CategorizeUnknown(ctx context.Context, c Categorizer, entries []domain.Entry) (int, error) {
	var (
		pending []domain.Entry
		pos     []int
	)
	for i, e := range entries {
		if e.Category == domain.TypeUnknown || e.Category == "" {
			pending = append(pending, e)
			pos = append(pos, i)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	decided, err := c.Categorize(ctx, pending)
	if err != nil {
		return 0, fmt.Errorf("CategorizeUnknown: %w", err)
	}

	changed := 0
	for i, t := range decided {
		if i < 0 || i >= len(pos) || t == domain.TypeUnknown {
			continue
		}
		entries[pos[i]].Category = t
		changed++
	}

	log := logger.FromContext(ctx)
	log.Info().Int("unknown", len(pending)).Int("categorized", changed).Msg("CategorizeUnknown: done")
	return changed, nil
}
