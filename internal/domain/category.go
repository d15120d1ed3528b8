package domain

import "strings"

// TransactionType is the closed category taxonomy assigned to every entry.
type TransactionType string

const (
	TypeDining              TransactionType = "dining"
	TypeTransportation      TransactionType = "transportation"
	TypeShopping            TransactionType = "shopping"
	TypeEntertainment       TransactionType = "entertainment"
	TypeDailyNecessities    TransactionType = "daily_necessities"
	TypeSupermarket         TransactionType = "supermarket"
	TypeGroceries           TransactionType = "groceries"
	TypeDigitalProducts     TransactionType = "digital_products"
	TypeClothing            TransactionType = "clothing"
	TypeBeauty              TransactionType = "beauty"
	TypeBooksMedia          TransactionType = "books_media"
	TypeTravel              TransactionType = "travel"
	TypeHousing             TransactionType = "housing"
	TypeUtilities           TransactionType = "utilities"
	TypeTelecom             TransactionType = "telecom"
	TypeFinancialServices   TransactionType = "financial_services"
	TypeSalary              TransactionType = "salary"
	TypeInvestmentIncome    TransactionType = "investment_income"
	TypeInterest            TransactionType = "interest"
	TypeTaxRefund           TransactionType = "tax_refund"
	TypeCreditCardRepayment TransactionType = "credit_card_repayment"
	TypeCashWithdrawal      TransactionType = "cash_withdrawal"
	TypePayment             TransactionType = "payment"
	TypeTransfer            TransactionType = "transfer"
	TypeRecharge            TransactionType = "recharge"
	TypeRefund              TransactionType = "refund"
	TypeUnknown             TransactionType = "unknown"
)

var transactionTypes = []struct {
	typ   TransactionType
	label string
}{
	{TypeDining, "餐饮美食"},
	{TypeTransportation, "交通出行"},
	{TypeShopping, "购物消费"},
	{TypeEntertainment, "休闲娱乐"},
	{TypeDailyNecessities, "日用百货"},
	{TypeSupermarket, "商超购物"},
	{TypeGroceries, "生鲜食品"},
	{TypeDigitalProducts, "数码家电"},
	{TypeClothing, "服饰鞋包"},
	{TypeBeauty, "美妆个护"},
	{TypeBooksMedia, "图书音像"},
	{TypeTravel, "旅游出行"},
	{TypeHousing, "住房缴费"},
	{TypeUtilities, "水电煤缴费"},
	{TypeTelecom, "通讯缴费"},
	{TypeFinancialServices, "金融服务"},
	{TypeSalary, "工资收入"},
	{TypeInvestmentIncome, "投资理财"},
	{TypeInterest, "利息收入"},
	{TypeTaxRefund, "退税"},
	{TypeCreditCardRepayment, "信用卡还款"},
	{TypeCashWithdrawal, "现金提取"},
	{TypePayment, "支付"},
	{TypeTransfer, "转账"},
	{TypeRecharge, "充值"},
	{TypeRefund, "退款"},
	{TypeUnknown, "未知类型"},
}

// TransactionTypes returns every category in taxonomy order.
func TransactionTypes() []TransactionType {
	out := make([]TransactionType, len(transactionTypes))
	for i, t := range transactionTypes {
		out[i] = t.typ
	}
	return out
}

// Label returns the Chinese display name, or the unknown label for values
// outside the taxonomy.
func (t TransactionType) Label() string {
	for _, tt := range transactionTypes {
		if tt.typ == t {
			return tt.label
		}
	}
	return "未知类型"
}

// Valid reports whether t belongs to the taxonomy.
func (t TransactionType) Valid() bool {
	for _, tt := range transactionTypes {
		if tt.typ == t {
			return true
		}
	}
	return false
}

// ParseTransactionType accepts a category code or its display label.
func ParseTransactionType(s string) (TransactionType, bool) {
	s = strings.TrimSpace(s)
	for _, tt := range transactionTypes {
		if strings.EqualFold(string(tt.typ), s) || tt.label == s {
			return tt.typ, true
		}
	}
	return TypeUnknown, false
}
