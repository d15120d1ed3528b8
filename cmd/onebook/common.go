package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/dvloznov/onebook-ledger/internal/config"
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// setup loads the configuration and installs the configured logger.
func setup(ctx context.Context) (context.Context, config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return ctx, config.Config{}, err
	}
	log := logger.NewWithLevel(cfg.LogLevel, cfg.LogJSON)
	logger.SetDefault(log)
	return logger.WithContext(ctx, log), cfg, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// formatAmount renders d in the ledger currency.
func formatAmount(d decimal.Decimal) string {
	cur := money.GetCurrency(money.CNY)
	minor := d.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction)).IntPart()
	return money.New(minor, money.CNY).Display()
}

// dateRange parses optional YYYY-MM-DD bounds. A missing end is today and a
// missing start is one year before the end.
func dateRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	to := now.UTC().Truncate(24 * time.Hour)
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: want YYYY-MM-DD", end)
		}
		to = t
	}

	from := to.AddDate(-1, 0, 0)
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: want YYYY-MM-DD", start)
		}
		from = t
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", to.Format(dateLayout), from.Format(dateLayout))
	}
	return from, to, nil
}

type entryTotals struct {
	count   int
	expense decimal.Decimal
	income  decimal.Decimal
}

func (t *entryTotals) add(e domain.Entry) {
	t.count++
	switch e.Direction {
	case domain.DirectionExpense:
		t.expense = t.expense.Add(e.Amount.Abs())
	case domain.DirectionIncome:
		t.income = t.income.Add(e.Amount.Abs())
	}
}
