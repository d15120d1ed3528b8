package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const chineseSample = "交易时间,交易类型,交易对方,商品,收/支,金额(元),支付方式,当前状态\n" +
	"2025-01-05 10:00:00,商户消费,北京地铁,地铁出行,支出,¥3.00,零钱,支付成功\n" +
	"2025-01-06 12:30:00,扫二维码付款,楼下便利店,午餐便当,支出,¥25.50,招商银行信用卡,支付成功\n" +
	"2025-01-07 09:15:00,转账,张三,转账备注说明文字,收入,¥500.00,零钱,已存入零钱\n"

func TestDetectEncoding(t *testing.T) {
	t.Run("utf-8 with bom", func(t *testing.T) {
		got, ok := DetectEncoding([]byte("\xef\xbb\xbf" + chineseSample))
		require.True(t, ok)
		assert.Equal(t, "UTF-8", got)
	})

	t.Run("gbk normalizes to gb18030", func(t *testing.T) {
		gbk, err := simplifiedchinese.GBK.NewEncoder().String(strings.Repeat(chineseSample, 8))
		require.NoError(t, err)

		got, ok := DetectEncoding([]byte(gbk))
		require.True(t, ok)
		assert.Equal(t, "GB18030", got)
	})

	t.Run("empty input is inconclusive", func(t *testing.T) {
		got, ok := DetectEncoding(nil)
		assert.False(t, ok)
		assert.Empty(t, got)
	})
}

func TestNormalizeEncoding(t *testing.T) {
	tests := map[string]string{
		"GB2312":     "GB18030",
		"gb-2312":    "GB18030",
		"GB-18030":   "GB18030",
		"gbk":        "GB18030",
		"utf8":       "UTF-8",
		" UTF-8 ":    "UTF-8",
		"Big5":       "BIG5",
		"ISO-8859-1": "ISO-8859-1",
		"":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeEncoding(in), in)
	}
}

func TestDetectHeaderSkip(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantSkip  int
		confident bool
	}{
		{
			name: "payment export preamble",
			text: "支付宝交易记录明细查询\n" +
				"账号:[user@example.com]\n" +
				"起始日期:[2025-01-01 00:00:00]    终止日期:[2025-02-01 00:00:00]\n" +
				"---------------------------------交易记录明细列表------------------------------------\n" +
				"交易号,交易时间,交易对方,金额\n" +
				"2025010522001,2025-01-05 10:00:00,淘宝店铺A,59.90\n",
			wantSkip:  4,
			confident: true,
		},
		{
			name: "preamble lines with a single filled cell",
			text: "微信支付账单明细,,,,\n" +
				"微信昵称：[someone],,,,\n" +
				"交易时间,交易类型,交易对方,商品,金额(元)\n" +
				"2025-01-05 10:00:00,商户消费,便利店,饮料,¥3.00\n",
			wantSkip:  2,
			confident: true,
		},
		{
			name:      "numeric rows are not headers",
			text:      "1,2,3\n2025,01,05\n日期,金额\n2025-01-05,3.00\n",
			wantSkip:  2,
			confident: true,
		},
		{
			name:      "header on first line",
			text:      "日期,类型,收支,金额\n2025-01-05 10:00:00,消费,支出,-59.90\n",
			wantSkip:  0,
			confident: true,
		},
		{
			name:      "no candidate",
			text:      "just a title\n----\n",
			wantSkip:  0,
			confident: false,
		},
		{
			name: "comma prose preamble is flagged",
			text: "说明, 本账单仅供参考\n" +
				"日期,类型,收支,金额\n" +
				"2025-01-05 10:00:00,消费,支出,-59.90\n",
			wantSkip:  0,
			confident: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectHeaderSkip(strings.NewReader(tt.text), MaxHeaderScan)
			assert.Equal(t, tt.wantSkip, got.Skip)
			assert.Equal(t, tt.confident, got.Confident)
		})
	}
}

func TestDetectHeaderSkip_RespectsScanLimit(t *testing.T) {
	text := strings.Repeat("preamble\n", 5) + "a,b\n1,2\n"

	assert.Equal(t, 5, DetectHeaderSkip(strings.NewReader(text), 10).Skip)
	assert.Equal(t, 0, DetectHeaderSkip(strings.NewReader(text), 3).Skip)
}

func TestDetectHeaderSkipRows(t *testing.T) {
	rows := [][]string{
		{"浦发银行信用卡账单"},
		{},
		{"交易日期", "交易摘要", "交易金额"},
		{"20250105", "财付通-起点中文网", "30.00"},
	}

	got := DetectHeaderSkipRows(rows, 0)
	assert.Equal(t, 2, got.Skip)
	assert.True(t, got.Confident)
}
