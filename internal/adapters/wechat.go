package adapters

import (
	"strings"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
)

const (
	wechatRefunded      = "已退款"
	wechatToBalance     = "已存入零钱"
	wechatBalance       = "零钱"
	wechatHeaderSkipped = 16
)

// WeChat parses the 微信支付 CSV export, which carries a fixed 16-line
// summary block above the header.
var WeChat = pipeline.SourceConfig{
	Name:       SourceWeChat,
	Encoding:   "utf-8",
	HeaderSkip: wechatHeaderSkipped,
	Mapping: pipeline.ColumnMapping{
		{Source: "交易时间", Target: domain.FieldDate},
		{Source: "交易类型", Target: domain.FieldTransactionSummary},
		{Source: "交易对方", Target: domain.FieldCounterparty},
		{Source: "商品", Target: domain.FieldDescription},
		{Source: "金额(元)", Target: domain.FieldAmount, Transform: pipeline.Func(parseAmount)},
		{Source: "收/支", Target: domain.FieldDirection, Transform: pipeline.Lookup{"/": string(domain.DirectionOther)}},
		{Source: "支付方式", Target: domain.FieldPaymentMethod, Transform: pipeline.Lookup{"/": ""}},
		{Source: "当前状态", Target: domain.FieldStatus, Transform: pipeline.Func(refundStatus)},
		{Source: "备注", Target: domain.FieldNote, Transform: pipeline.Lookup{"/": ""}},
	},
	Constants: map[string]any{
		domain.FieldAccount: "微信",
	},
	Derive: deriveWeChat,
}

// refundStatus collapses "已退款￥1.51" style statuses to 已退款.
func refundStatus(raw string) (any, error) {
	if strings.Contains(raw, wechatRefunded) {
		return wechatRefunded, nil
	}
	return raw, nil
}

// deriveWeChat rewrites change-wallet deposits, which the export reports
// without a payment method, as successful payments into 零钱.
func deriveWeChat(r pipeline.Row) pipeline.Row {
	if text(r, domain.FieldStatus) == wechatToBalance {
		r[domain.FieldPaymentMethod] = wechatBalance
		r[domain.FieldStatus] = "交易成功"
	}
	return r
}
