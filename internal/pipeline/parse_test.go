package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = SourceConfig{
	Name:       "test",
	Encoding:   "utf-8",
	HeaderSkip: 0,
	Mapping: ColumnMapping{
		{Source: "日期", Target: domain.FieldDate},
		{Source: "类型", Target: domain.FieldTransactionSummary},
		{Source: "收支", Target: domain.FieldDirection},
		{Source: "金额", Target: domain.FieldAmount},
		{Source: "商品", Target: domain.FieldDescription},
		{Source: "对方", Target: domain.FieldCounterparty},
		{Source: "备注", Target: domain.FieldNote},
	},
	Constants: map[string]any{domain.FieldAccount: "测试账户"},
}

func TestParse_GenericCSV(t *testing.T) {
	path := writeFile(t, "bill.csv", []byte(
		"日期,类型,收支,金额,商品,对方,备注\n"+
			"2025-01-05 10:00:00,消费,支出,-59.90,商品A,淘宝店铺A,备注1\n"))

	entries, err := Parse(context.Background(), path, testConfig)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	require.NotNil(t, e.Date)
	assert.Equal(t, time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), *e.Date)
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("-59.90")))
	assert.Equal(t, domain.DirectionExpense, e.Direction)
	assert.Equal(t, "支出", e.Direction.Label())
	assert.Equal(t, "淘宝店铺A", e.Counterparty)
	assert.Equal(t, "商品A", e.Description)
	assert.Equal(t, "备注1", e.Note)
	assert.Equal(t, "测试账户", e.Account)
	assert.Equal(t, domain.TypeShopping, e.Category)
}

func TestParse_MissingColumnLeavesFieldEmpty(t *testing.T) {
	path := writeFile(t, "bill.csv", []byte(
		"日期,类型,收支,金额,商品\n"+
			"2025-01-05 10:00:00,转账,收入,200.00,红包\n"))

	entries, err := Parse(context.Background(), path, testConfig)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Empty(t, e.Counterparty)
	assert.Empty(t, e.Note)
	assert.Equal(t, "红包", e.Description)
	assert.Equal(t, domain.DirectionIncome, e.Direction)
	assert.True(t, e.Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, domain.TypeTransfer, e.Category)
}

func TestParse_AutoDetectLayout(t *testing.T) {
	content := "\xef\xbb\xbf账单导出\n" +
		"导出时间:[2025-01-31 12:00:00]\n" +
		"日期,类型,收支,金额,商品,对方,备注\n" +
		"2025-01-05 10:00:00,消费,支出,-59.90,商品A,淘宝店铺A,备注1\n" +
		"2025-01-06 08:30:00,地铁出行,支出,4.00,单程票,地铁公司,\n"
	path := writeFile(t, "auto.csv", []byte(content))

	cfg := testConfig
	cfg.Encoding = ""
	cfg.HeaderSkip = AutoSkip

	entries, err := Parse(context.Background(), path, cfg)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "淘宝店铺A", entries[0].Counterparty)
	assert.Equal(t, domain.TypeTransportation, entries[1].Category)
}

func TestParse_BlankLineInPreamble(t *testing.T) {
	content := "\xef\xbb\xbf账单导出\n" +
		"\n" +
		"导出时间:[2025-01-31 12:00:00]\n" +
		"日期,类型,收支,金额,商品,对方,备注\n" +
		"2025-01-05 10:00:00,消费,支出,-59.90,商品A,淘宝店铺A,备注1\n" +
		"2025-01-06 08:30:00,地铁出行,支出,4.00,单程票,地铁公司,\n"
	path := writeFile(t, "blank.csv", []byte(content))

	tests := []struct {
		name string
		skip int
	}{
		{name: "detected", skip: AutoSkip},
		{name: "fixed", skip: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig
			cfg.HeaderSkip = tt.skip

			entries, err := Parse(context.Background(), path, cfg)
			require.NoError(t, err)
			require.Len(t, entries, 2)

			require.NotNil(t, entries[0].Date)
			assert.Equal(t, time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), *entries[0].Date)
			assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("-59.90")))
			assert.Equal(t, "淘宝店铺A", entries[0].Counterparty)
			assert.True(t, entries[1].Amount.Equal(decimal.RequireFromString("4.00")))
		})
	}
}

func TestParse_SparseRowsKeptTrailersDropped(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf))

	path := writeFile(t, "sparse.csv", []byte(
		"日期,金额\n"+
			"2025-01-05 10:00:00,12.00\n"+
			",30.00\n"+
			"-------------------------\n"+
			"共2笔记录\n"))

	entries, err := Parse(ctx, path, testConfig)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Nil(t, entries[1].Date)
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, domain.DirectionExpense, entries[1].Direction)

	out := buf.String()
	assert.Contains(t, out, "dropping trailer row")
	assert.Contains(t, out, "共2笔记录")
	assert.NotContains(t, out, `"line":"30.00"`)
}

func TestParse_WarnsOnMissingColumns(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf))

	path := writeFile(t, "bill.csv", []byte("日期,金额\n2025-01-05 10:00:00,12.00\n"))

	entries, err := Parse(ctx, path, testConfig)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "mapped columns absent from file")
	assert.Contains(t, out, "对方")
}

func TestDetectLayout(t *testing.T) {
	content := "\xef\xbb\xbf账单导出\n" +
		"导出时间:[2025-01-31 12:00:00]\n" +
		"日期,类型,收支,金额,商品,对方,备注\n" +
		"2025-01-05 10:00:00,消费,支出,-59.90,商品A,淘宝店铺A,备注1\n"
	path := writeFile(t, "layout.csv", []byte(content))

	layout, err := DetectLayout(path)
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, layout.Format)
	assert.NotEmpty(t, layout.Encoding)
	assert.Equal(t, 2, layout.Skip)
	assert.True(t, layout.Confident)

	_, err = DetectLayout("statement.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParse_DeriveRunsPerRow(t *testing.T) {
	path := writeFile(t, "bill.csv", []byte("日期,金额,商品\n2025-01-05 10:00:00,12.00,咖啡\n"))

	cfg := testConfig
	cfg.Derive = func(r Row) Row {
		if _, ok := r[domain.FieldTransactionSummary]; !ok {
			r[domain.FieldTransactionSummary] = r[domain.FieldDescription]
		}
		return r
	}

	entries, err := Parse(context.Background(), path, cfg)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "咖啡", entries[0].TransactionSummary)
	assert.Equal(t, domain.TypeDining, entries[0].Category)
	assert.Equal(t, domain.DirectionExpense, entries[0].Direction)
}

func TestParse_FileErrors(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf))

	entries, err := Parse(ctx, filepath.Join(t.TempDir(), "missing.csv"), testConfig)
	assert.Nil(t, entries)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, buf.String(), "load failed")

	entries, err = Parse(ctx, "statement.pdf", testConfig)
	assert.Nil(t, entries)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestParse_CanceledContext(t *testing.T) {
	path := writeFile(t, "bill.csv", []byte("日期,金额\n2025-01-05,1\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries, err := Parse(ctx, path, testConfig)
	assert.Nil(t, entries)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEntryFromRow(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("typed values", func(t *testing.T) {
		e := EntryFromRow(Row{
			domain.FieldDate:      ts,
			domain.FieldAmount:    decimal.RequireFromString("-8.50"),
			domain.FieldDirection: domain.DirectionIncome,
			domain.FieldCategory:  domain.TypeRefund,
			domain.FieldStatus:    "交易成功",
		})
		require.NotNil(t, e.Date)
		assert.Equal(t, ts, *e.Date)
		assert.Equal(t, domain.DirectionIncome, e.Direction)
		assert.Equal(t, domain.TypeRefund, e.Category)
		assert.Equal(t, "交易成功", e.Status)
	})

	t.Run("direction from amount", func(t *testing.T) {
		assert.Equal(t, domain.DirectionExpense, EntryFromRow(Row{domain.FieldAmount: "30"}).Direction)
		assert.Equal(t, domain.DirectionIncome, EntryFromRow(Row{domain.FieldAmount: -30.0}).Direction)
		assert.Equal(t, domain.DirectionOther, EntryFromRow(Row{}).Direction)
	})

	t.Run("category text", func(t *testing.T) {
		e := EntryFromRow(Row{domain.FieldCategory: "餐饮", domain.FieldTransactionSummary: "滴滴出行"})
		assert.Equal(t, domain.TypeTransportation, e.Category, "unknown label falls back to classifier")

		e = EntryFromRow(Row{domain.FieldCategory: "salary", domain.FieldTransactionSummary: "滴滴出行"})
		assert.Equal(t, domain.TypeSalary, e.Category)

		e = EntryFromRow(Row{domain.FieldCategory: ""})
		assert.Equal(t, domain.TypeUnknown, e.Category)
	})

	t.Run("unparseable date left empty", func(t *testing.T) {
		e := EntryFromRow(Row{domain.FieldDate: "someday"})
		assert.Nil(t, e.Date)
	})
}
