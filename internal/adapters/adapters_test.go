package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func writeFixture(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func gbk(t *testing.T, s string) []byte {
	t.Helper()
	out, err := simplifiedchinese.GBK.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

func day(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestLookup(t *testing.T) {
	tests := []struct {
		selector string
		want     string
	}{
		{"alipay", SourceAlipay},
		{" WeChat ", SourceWeChat},
		{"微信账单", SourceWeChat},
		{"支付宝账单", SourceAlipay},
		{"中信银行账单", SourceCITIC},
		{"浦发银行账单", SourceSPDB},
		{"generic", SourceGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			a, err := Lookup(tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.SourceType)
			assert.Equal(t, tt.want, a.Config.Name)
		})
	}

	_, err := Lookup("barclays")
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

func TestSourceTypes(t *testing.T) {
	assert.Equal(t, []string{"alipay", "citic", "generic", "spdb", "wechat"}, SourceTypes())
	assert.Len(t, All(), 5)
}

func TestExtractChannel(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"财付通-起点中文网", "财付通", true},
		{"支付宝-淘宝网", "支付宝", true},
		{"微信支付-京东商城", "微信支付", true},
		{"银行卡-美团外卖", "银行卡", true},
		{"直接支付", "", false},
		{"已退款￥1.51", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractChannel(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestExtractDescription(t *testing.T) {
	tests := map[string]string{
		"财付通-起点中文网": "起点中文网",
		"支付宝-淘宝网":   "淘宝网",
		"银行卡-美团外卖":  "美团外卖",
		"直接支付":      "直接支付",
		"已退款￥1.51":  "已退款￥1.51",
		"":          "",
		"银联-商户-分店":  "商户-分店",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractDescription(in), in)
	}
}

func TestParseFile_MissingFile(t *testing.T) {
	for _, a := range All() {
		t.Run(a.SourceType, func(t *testing.T) {
			entries, err := ParseFile(context.Background(), a.SourceType, filepath.Join(t.TempDir(), "missing.csv"))
			assert.Empty(t, entries)
			assert.True(t, errors.Is(err, pipeline.ErrNotFound), "got %v", err)
		})
	}
}

func TestParseFile_UnknownSource(t *testing.T) {
	entries, err := ParseFile(context.Background(), "nope", "bill.csv")
	assert.Nil(t, entries)
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

func TestParseFile_Alipay(t *testing.T) {
	content := "支付宝交易记录明细查询\n" +
		"账号:[user@example.com]\n" +
		"起始日期:[2025-01-01 00:00:00]    终止日期:[2025-02-01 00:00:00]\n" +
		"---------------------------------交易记录明细列表------------------------------------\n" +
		"交易时间,交易类型,交易对方,商品名称,金额,收/支,备注\n" +
		"2025-01-05 10:00:00,,淘宝店铺A,淘宝购物,129.00,支出,\n" +
		"2025-01-06 12:30:00,餐饮美食,,,35.50,支出,午饭\n" +
		"2025-01-07 08:00:00,余额宝收益,余额宝,,0.52,不计收支,\n" +
		"------------------------------------------------------------------------------------\n" +
		"共3笔记录\n"
	path := writeFixture(t, "alipay.csv", gbk(t, content))

	entries, err := ParseFile(context.Background(), SourceAlipay, path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, "支付宝", first.Account)
	assert.Equal(t, "支付宝", first.PaymentMethod)
	assert.Equal(t, "交易成功", first.Status)
	assert.Equal(t, "淘宝购物", first.TransactionSummary, "summary falls back to description")
	assert.Equal(t, "淘宝店铺A", first.Counterparty)
	assert.Equal(t, domain.DirectionExpense, first.Direction)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("129.00")))
	assert.Equal(t, domain.TypeShopping, first.Category)
	require.NotNil(t, first.Date)
	assert.Equal(t, day(2025, 1, 5, 10, 0), *first.Date)

	second := entries[1]
	assert.Equal(t, "餐饮美食", second.Description, "description falls back to summary")
	assert.Empty(t, second.Counterparty)
	assert.Equal(t, "午饭", second.Note)
	assert.Equal(t, domain.TypeDining, second.Category)

	assert.Equal(t, domain.DirectionOther, entries[2].Direction)
}

func wechatFixture() string {
	var b strings.Builder
	b.WriteString("\xef\xbb\xbf微信支付账单明细,,,,,,,,,,\n")
	b.WriteString("微信昵称：[someone],,,,,,,,,,\n")
	b.WriteString("起始时间：[2025-01-01 00:00:00] 终止时间：[2025-02-01 00:00:00],,,,,,,,,,\n")
	b.WriteString("导出类型：[全部],,,,,,,,,,\n")
	b.WriteString("导出时间：[2025-02-01 10:00:00],,,,,,,,,,\n")
	b.WriteString(",,,,,,,,,,\n")
	b.WriteString("共3笔记录,,,,,,,,,,\n")
	b.WriteString("收入：1笔 66.00元,,,,,,,,,,\n")
	b.WriteString("支出：2笔 234.80元,,,,,,,,,,\n")
	b.WriteString("中性交易：0笔 0.00元,,,,,,,,,,\n")
	b.WriteString("注：,,,,,,,,,,\n")
	b.WriteString("1. 充值/提现/理财通购买/零钱通存取/信用卡还款等交易，将计入中性交易,,,,,,,,,,\n")
	b.WriteString("2. 本明细仅展示当前账单中的交易，不包括已删除的记录,,,,,,,,,,\n")
	b.WriteString("3. 本明细仅供个人对账使用,,,,,,,,,,\n")
	b.WriteString(",,,,,,,,,,\n")
	b.WriteString("----------------------微信支付账单明细列表--------------------,,,,,,,,,,\n")
	b.WriteString("交易时间,交易类型,交易对方,商品,收/支,金额(元),支付方式,当前状态,交易单号,商户单号,备注\n")
	b.WriteString("2025-01-05 12:00:00,商户消费,美团,外卖订单,支出,¥35.80,零钱,支付成功,1001,2001,/\n")
	b.WriteString("2025-01-06 09:00:00,微信红包,张三,/,收入,¥66.00,/,已存入零钱,1002,2002,/\n")
	b.WriteString("2025-01-07 18:00:00,商户消费,京东,耳机,支出,¥199.00,招商银行(1234),已退款￥1.51,1003,2003,生日礼物\n")
	return b.String()
}

func TestParseFile_WeChat(t *testing.T) {
	path := writeFixture(t, "wechat.csv", []byte(wechatFixture()))

	entries, err := ParseFile(context.Background(), "微信账单", path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for _, e := range entries {
		assert.Equal(t, "微信", e.Account)
	}

	assert.Equal(t, "美团", entries[0].Counterparty)
	assert.Equal(t, "外卖订单", entries[0].Description)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("35.80")))
	assert.Equal(t, "支付成功", entries[0].Status)
	assert.Empty(t, entries[0].Note)

	assert.Equal(t, domain.DirectionIncome, entries[1].Direction)
	assert.Equal(t, "零钱", entries[1].PaymentMethod)
	assert.Equal(t, "交易成功", entries[1].Status)

	assert.Equal(t, "已退款", entries[2].Status)
	assert.Equal(t, "招商银行(1234)", entries[2].PaymentMethod)
	assert.Equal(t, "生日礼物", entries[2].Note)
	require.NotNil(t, entries[2].Date)
	assert.Equal(t, day(2025, 1, 7, 18, 0), *entries[2].Date)
}

func TestParseFile_CITIC(t *testing.T) {
	content := "中信银行信用卡账单\n" +
		"交易日期,交易摘要,交易金额,卡号后四位\n" +
		"20250105,财付通-起点中文网,30.00,1234\n" +
		"20250106,还款,-1000.00,1234\n" +
		"20251341,支付宝-淘宝网,12.00,1234\n"
	path := writeFixture(t, "citic.csv", gbk(t, content))

	entries, err := ParseFile(context.Background(), SourceCITIC, path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, "中信银行", first.Account)
	assert.Equal(t, "财付通", first.Counterparty)
	assert.Equal(t, "起点中文网", first.Description)
	assert.Equal(t, "财付通-起点中文网", first.TransactionSummary)
	assert.Equal(t, domain.DirectionExpense, first.Direction)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(30)))
	assert.Empty(t, first.Status)
	require.NotNil(t, first.Date)
	assert.Equal(t, day(2025, 1, 5, 0, 0), *first.Date)

	repayment := entries[1]
	assert.Empty(t, repayment.Counterparty)
	assert.Equal(t, "还款", repayment.Description)
	assert.Equal(t, domain.DirectionIncome, repayment.Direction)
	assert.True(t, repayment.Amount.IsNegative(), "sign and direction come from the same value")

	assert.Nil(t, entries[2].Date, "invalid date is absent")
	assert.Equal(t, domain.TypeFinancialServices, entries[2].Category)
}

func TestParseFile_SPDB(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows := [][]any{
		{"浦发银行信用卡对账单"},
		{"账单周期 2025/01"},
		{"交易日期", "记账日期", "交易摘要", "卡号末四位", "交易金额"},
		{"20250105", "20250106", "星巴克咖啡", "1234", "45.80"},
		{"20250110", "20250110", "信用卡还款", "1234", "-500.00"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	path := filepath.Join(t.TempDir(), "spdb.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	entries, err := ParseFile(context.Background(), SourceSPDB, path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	coffee := entries[0]
	assert.Equal(t, "浦发银行", coffee.Account)
	assert.Equal(t, "浦发银行信用卡", coffee.PaymentMethod)
	assert.Equal(t, "交易成功", coffee.Status)
	assert.Equal(t, "星巴克咖啡", coffee.Counterparty)
	assert.Equal(t, "星巴克咖啡", coffee.Description)
	assert.Equal(t, domain.DirectionExpense, coffee.Direction)
	assert.Equal(t, domain.TypeDining, coffee.Category)

	repayment := entries[1]
	assert.Equal(t, domain.DirectionIncome, repayment.Direction)
	assert.Equal(t, domain.TypeCreditCardRepayment, repayment.Category)
}

func TestParseFile_Generic(t *testing.T) {
	path := writeFixture(t, "generic.csv", []byte(
		"日期,类型,收支,金额,商品,对方,备注\n"+
			"2025-01-05 10:00:00,消费,支出,-59.90,商品A,淘宝店铺A,备注1\n"))

	entries, err := ParseFile(context.Background(), SourceGeneric, path)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	require.NotNil(t, e.Date)
	assert.Equal(t, day(2025, 1, 5, 10, 0), *e.Date)
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("-59.90")))
	assert.Equal(t, domain.DirectionExpense, e.Direction)
	assert.Equal(t, "淘宝店铺A", e.Counterparty)
	assert.Equal(t, domain.TypeShopping, e.Category)
}
