package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical field names. They double as JSON keys and storage column names
// and are the stable contract shared with storage and display.
const (
	FieldAccount            = "account"
	FieldDate               = "date"
	FieldTransactionSummary = "transaction_summary"
	FieldCounterparty       = "counterparty"
	FieldDescription        = "description"
	FieldAmount             = "amount"
	FieldDirection          = "direction"
	FieldPaymentMethod      = "payment_method"
	FieldStatus             = "status"
	FieldNote               = "note"
	FieldCategory           = "category"
)

// CanonicalFields lists every canonical field in display order.
var CanonicalFields = []string{
	FieldAccount,
	FieldDate,
	FieldTransactionSummary,
	FieldCounterparty,
	FieldDescription,
	FieldAmount,
	FieldDirection,
	FieldPaymentMethod,
	FieldStatus,
	FieldNote,
	FieldCategory,
}

// IsCanonicalField reports whether name is one of CanonicalFields.
func IsCanonicalField(name string) bool {
	for _, f := range CanonicalFields {
		if f == name {
			return true
		}
	}
	return false
}

// Direction is the money-flow direction of an entry.
type Direction string

const (
	DirectionExpense Direction = "expense"
	DirectionIncome  Direction = "income"
	DirectionOther   Direction = "other"
)

// Label returns the display label used by the bill producers.
func (d Direction) Label() string {
	switch d {
	case DirectionExpense:
		return "支出"
	case DirectionIncome:
		return "收入"
	default:
		return "其他"
	}
}

// ParseDirection maps a producer label (支出/收入) or a canonical name to a
// Direction. Anything else, including 不计收支, is DirectionOther.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "支出", "expense", "out":
		return DirectionExpense
	case "收入", "income", "in":
		return DirectionIncome
	default:
		return DirectionOther
	}
}

// Entry is one normalized ledger entry. Date is nil when the source value was
// absent or unparseable; Amount is zero when absent.
type Entry struct {
	Account            string          `json:"account"`
	Date               *time.Time      `json:"date"`
	TransactionSummary string          `json:"transaction_summary"`
	Counterparty       string          `json:"counterparty"`
	Description        string          `json:"description"`
	Amount             decimal.Decimal `json:"amount"`
	Direction          Direction       `json:"direction"`
	PaymentMethod      string          `json:"payment_method"`
	Status             string          `json:"status"`
	Note               string          `json:"note"`
	Category           TransactionType `json:"category"`
}

// DateString formats Date as "2006-01-02 15:04:05", or "" when absent.
func (e Entry) DateString() string {
	if e.Date == nil {
		return ""
	}
	return e.Date.Format("2006-01-02 15:04:05")
}
