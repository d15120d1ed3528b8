package adapters

import (
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
)

// SPDB parses the 浦发银行 credit card statement spreadsheet (.xls or .xlsx).
// The title block above the header varies, so the header row is detected.
var SPDB = pipeline.SourceConfig{
	Name:       SourceSPDB,
	HeaderSkip: pipeline.AutoSkip,
	Mapping: pipeline.ColumnMapping{
		{Source: "交易日期", Target: domain.FieldDate, Transform: pipeline.Func(compactDate)},
		{Source: "交易摘要", Target: domain.FieldTransactionSummary},
		{Source: "交易摘要", Target: domain.FieldCounterparty},
		{Source: "交易摘要", Target: domain.FieldDescription},
		{Source: "交易金额", Target: domain.FieldAmount, Transform: pipeline.Func(parseAmount)},
		{Source: "交易金额", Target: domain.FieldDirection, Transform: pipeline.Func(directionOf)},
	},
	Constants: map[string]any{
		domain.FieldAccount:       "浦发银行",
		domain.FieldPaymentMethod: "浦发银行信用卡",
		domain.FieldStatus:        "交易成功",
		domain.FieldNote:          "",
	},
}
