package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// DefaultDateLayout is the timestamp layout shared by the payment exports.
const DefaultDateLayout = "2006-01-02 15:04:05"

// KnownDateLayouts are tried in order when no explicit layout is given.
var KnownDateLayouts = []string{
	DefaultDateLayout,
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"20060102",
}

var (
	symbolAmountRe = regexp.MustCompile(`([+-]?)\s*[¥￥$]\s*(-?[\d,.]+)`)
	cnyAmountRe    = regexp.MustCompile(`(?i)([+-]?)\s*CNY\s*(-?[\d,.]+)`)
)

// ParseAmount converts free text to a decimal. It tries a plain number, then
// the number without thousands separators, then a currency-prefixed number
// (¥, ￥, $, CNY). When everything fails it logs a warning and returns zero.
func ParseAmount(s string) decimal.Decimal {
	d, err := parseAmount(s)
	if err != nil {
		log := logger.Default()
		log.Warn().Str("value", s).Err(err).Msg("ParseAmount: unparseable amount, using 0")
		return decimal.Zero
	}
	return d
}

func parseAmount(s string) (decimal.Decimal, error) {
	if d, err := parseNumber(s); err == nil {
		return d, nil
	}

	for _, re := range []*regexp.Regexp{symbolAmountRe, cnyAmountRe} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
		if err != nil {
			continue
		}
		if m[1] == "-" && d.IsPositive() {
			d = d.Neg()
		}
		return d, nil
	}

	return decimal.Zero, fmt.Errorf("no number in %q", s)
}

// parseNumber accepts a plain number, with or without thousands separators.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if d, err := decimal.NewFromString(s); err == nil {
		return d, nil
	}
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

// ParseDateTime turns v into a timestamp. A time.Time is returned unchanged;
// empty text is absent. With a layout the text must match it exactly,
// otherwise KnownDateLayouts are tried in order. Timestamps carry no zone
// and are returned as UTC wall-clock values.
func ParseDateTime(v any, layout string) (time.Time, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, !val.IsZero()
	case string:
		s = val
	default:
		s = fmt.Sprint(val)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	layouts := KnownDateLayouts
	if layout != "" {
		layouts = []string{layout}
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}

	log := logger.Default()
	log.Warn().Str("value", s).Str("layout", layout).Msg("ParseDateTime: unparseable date")
	return time.Time{}, false
}

// ConvertDateFormat rewrites a compact YYYYMMDD date, plus an optional
// HH:MM:SS clock (midnight when empty), as "YYYY-MM-DD HH:MM:SS". It reports
// false for any invalid date or clock.
func ConvertDateFormat(date, clock string) (string, bool) {
	if len(date) != 8 {
		return "", false
	}
	d, err := time.Parse("20060102", date)
	if err != nil {
		return "", false
	}

	if clock == "" {
		clock = "00:00:00"
	}
	c, err := time.Parse("15:04:05", clock)
	if err != nil {
		return "", false
	}

	ts := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC)
	return ts.Format(DefaultDateLayout), true
}

// DirectionFromAmount maps the sign of a bank amount to a direction:
// positive is money out, negative is money in.
func DirectionFromAmount(d decimal.Decimal) domain.Direction {
	switch d.Sign() {
	case 1:
		return domain.DirectionExpense
	case -1:
		return domain.DirectionIncome
	default:
		return domain.DirectionOther
	}
}

// DirectionFromText is DirectionFromAmount for numeric text. It reports false
// when s is not a number.
func DirectionFromText(s string) (domain.Direction, bool) {
	d, err := parseNumber(s)
	if err != nil {
		return "", false
	}
	return DirectionFromAmount(d), true
}

// StripSign returns the absolute value of numeric text with two decimals.
// It reports false when s is not a number.
func StripSign(s string) (string, bool) {
	d, err := parseNumber(s)
	if err != nil {
		return "", false
	}
	return d.Abs().StringFixed(2), true
}
