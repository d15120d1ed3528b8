// Package adapters holds the per-producer configurations that turn bill
// exports from payment apps and banks into ledger entries.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
)

// Source type selectors stored with every bill file.
const (
	SourceAlipay  = "alipay"
	SourceWeChat  = "wechat"
	SourceCITIC   = "citic"
	SourceSPDB    = "spdb"
	SourceGeneric = "generic"
)

// ErrUnknownSource is returned for a selector no adapter answers to.
var ErrUnknownSource = errors.New("unknown bill source")

// Adapter binds a source type to the configuration used for its exports.
type Adapter struct {
	SourceType string
	BillName   string
	Config     pipeline.SourceConfig
}

var registry = []Adapter{
	{SourceType: SourceAlipay, BillName: "支付宝账单", Config: Alipay},
	{SourceType: SourceWeChat, BillName: "微信账单", Config: WeChat},
	{SourceType: SourceCITIC, BillName: "中信银行账单", Config: CITIC},
	{SourceType: SourceSPDB, BillName: "浦发银行账单", Config: SPDB},
	{SourceType: SourceGeneric, BillName: "通用账单", Config: Generic},
}

// All returns every registered adapter in registration order.
func All() []Adapter {
	out := make([]Adapter, len(registry))
	copy(out, registry)
	return out
}

// SourceTypes returns the registered selectors, sorted.
func SourceTypes() []string {
	out := make([]string, 0, len(registry))
	for _, a := range registry {
		out = append(out, a.SourceType)
	}
	sort.Strings(out)
	return out
}

// Lookup finds an adapter by source type (case-insensitive) or by its
// Chinese bill name.
func Lookup(selector string) (Adapter, error) {
	s := strings.TrimSpace(selector)
	for _, a := range registry {
		if strings.EqualFold(a.SourceType, s) || a.BillName == s {
			return a, nil
		}
	}
	return Adapter{}, fmt.Errorf("Lookup: %q: %w", selector, ErrUnknownSource)
}

// ParseFile parses the bill at path with the adapter named by selector. On a
// file-level failure it returns no entries and the error, which matches the
// pipeline sentinels (pipeline.ErrNotFound and friends) under errors.Is.
func ParseFile(ctx context.Context, selector, path string) ([]domain.Entry, error) {
	a, err := Lookup(selector)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("path", path).Str("stage", "select").Msg("ParseFile: no adapter")
		return nil, err
	}

	entries, err := pipeline.Parse(ctx, path, a.Config)
	if err != nil {
		return nil, fmt.Errorf("ParseFile: %s: %w", a.SourceType, err)
	}
	return entries, nil
}

func parseAmount(raw string) (any, error) {
	return pipeline.ParseAmount(raw), nil
}

// directionOf derives the direction from a signed bank amount. Text that is
// not a number leaves the direction to be derived from the parsed amount.
func directionOf(raw string) (any, error) {
	if d, ok := pipeline.DirectionFromText(raw); ok {
		return d, nil
	}
	return nil, nil
}

// compactDate converts a YYYYMMDD cell. Invalid dates leave the field unset.
func compactDate(raw string) (any, error) {
	if s, ok := pipeline.ConvertDateFormat(strings.TrimSpace(raw), ""); ok {
		return s, nil
	}
	return nil, nil
}

func text(r pipeline.Row, field string) string {
	s, _ := r[field].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
