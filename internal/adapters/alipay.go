package adapters

import (
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
)

// Alipay parses the 支付宝 CSV export. The file is GBK encoded and starts
// with a variable-length account preamble.
var Alipay = pipeline.SourceConfig{
	Name:       SourceAlipay,
	Encoding:   "GB18030",
	HeaderSkip: pipeline.AutoSkip,
	Mapping: pipeline.ColumnMapping{
		{Source: "交易时间", Target: domain.FieldDate},
		{Source: "交易类型", Target: domain.FieldTransactionSummary},
		{Source: "收/支", Target: domain.FieldDirection},
		{Source: "金额", Target: domain.FieldAmount, Transform: pipeline.Func(parseAmount)},
		{Source: "金额(元)", Target: domain.FieldAmount, Transform: pipeline.Func(parseAmount)},
		{Source: "商品名称", Target: domain.FieldDescription},
		{Source: "商品说明", Target: domain.FieldDescription},
		{Source: "交易对方", Target: domain.FieldCounterparty},
		{Source: "备注", Target: domain.FieldNote},
	},
	Constants: map[string]any{
		domain.FieldAccount:       "支付宝",
		domain.FieldPaymentMethod: "支付宝",
		domain.FieldStatus:        "交易成功",
	},
	Derive: deriveAlipay,
}

// deriveAlipay fills blank text fields from their neighbours, in priority
// order, using the values as mapped.
func deriveAlipay(r pipeline.Row) pipeline.Row {
	summary := text(r, domain.FieldTransactionSummary)
	counterparty := text(r, domain.FieldCounterparty)
	description := text(r, domain.FieldDescription)

	r[domain.FieldTransactionSummary] = firstNonEmpty(summary, description, counterparty)
	r[domain.FieldCounterparty] = firstNonEmpty(counterparty, description)
	r[domain.FieldDescription] = firstNonEmpty(description, summary)
	return r
}
