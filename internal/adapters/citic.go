package adapters

import (
	"strings"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
)

// CITIC parses the 中信银行 credit card CSV statement. Amounts are signed
// with spending positive, and the summary packs "channel-merchant".
var CITIC = pipeline.SourceConfig{
	Name:       SourceCITIC,
	Encoding:   "GB18030",
	HeaderSkip: 1,
	Mapping: pipeline.ColumnMapping{
		{Source: "交易日期", Target: domain.FieldDate, Transform: pipeline.Func(compactDate)},
		{Source: "交易摘要", Target: domain.FieldTransactionSummary},
		{Source: "交易摘要", Target: domain.FieldCounterparty, Transform: pipeline.Func(channelOf)},
		{Source: "交易对方", Target: domain.FieldCounterparty, Transform: pipeline.Func(nonBlank)},
		{Source: "交易摘要", Target: domain.FieldDescription, Transform: pipeline.Func(descriptionOf)},
		{Source: "交易金额", Target: domain.FieldAmount, Transform: pipeline.Func(parseAmount)},
		{Source: "交易金额", Target: domain.FieldDirection, Transform: pipeline.Func(directionOf)},
	},
	Constants: map[string]any{
		domain.FieldAccount:  "中信银行",
		domain.FieldStatus:   "",
		domain.FieldCategory: "",
	},
}

// ExtractChannel returns the part of a "channel-description" summary before
// the first '-'. It reports false when there is no separator.
func ExtractChannel(summary string) (string, bool) {
	channel, _, found := strings.Cut(summary, "-")
	if !found {
		return "", false
	}
	return channel, true
}

// ExtractDescription returns the part of a "channel-description" summary
// after the first '-', or the whole summary when there is no separator.
func ExtractDescription(summary string) string {
	_, desc, found := strings.Cut(summary, "-")
	if !found {
		return summary
	}
	return desc
}

func channelOf(raw string) (any, error) {
	if c, ok := ExtractChannel(raw); ok {
		return c, nil
	}
	return nil, nil
}

func descriptionOf(raw string) (any, error) {
	return ExtractDescription(raw), nil
}

func nonBlank(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	return raw, nil
}
