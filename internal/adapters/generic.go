package adapters

import (
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
)

// Generic parses CSV or spreadsheet files using the common Chinese column
// vocabulary. Encoding and header position are both detected.
var Generic = pipeline.SourceConfig{
	Name:       SourceGeneric,
	HeaderSkip: pipeline.AutoSkip,
	Mapping: pipeline.ColumnMapping{
		{Source: "日期", Target: domain.FieldDate},
		{Source: "类型", Target: domain.FieldTransactionSummary},
		{Source: "收支", Target: domain.FieldDirection},
		{Source: "金额", Target: domain.FieldAmount, Transform: pipeline.Func(parseAmount)},
		{Source: "商品", Target: domain.FieldDescription},
		{Source: "对方", Target: domain.FieldCounterparty},
		{Source: "备注", Target: domain.FieldNote},
	},
}
