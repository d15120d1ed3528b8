package pipeline

import (
	"regexp"
	"strings"

	"github.com/dvloznov/onebook-ledger/internal/domain"
)

type classifierRule struct {
	category domain.TransactionType
	keywords []string
	pattern  *regexp.Regexp
}

// classifierRules is evaluated top to bottom and the first match wins, so
// specific categories sit above the catch-all payment and transfer rules.
// Overlapping keywords (超市 under shopping and supermarket) resolve to the
// earlier rule.
var classifierRules = compileRules([]classifierRule{
	{category: domain.TypeDining, keywords: []string{
		"麦当劳", "肯德基", "星巴克", "咖啡", "餐饮", "美食", "茶饮", "小吃", "快餐", "外卖", "餐厅", "饭店", "食堂",
		"自助餐", "火锅", "烧烤", "烤肉", "披萨", "汉堡", "炸鸡", "奶茶", "果汁", "面包", "蛋糕", "甜点", "零食",
		"夜宵", "早点", "午餐", "晚餐", "宵夜", "下午茶", "咖啡馆", "餐馆", "小馆", "饭馆", "酒楼", "菜馆", "茶餐厅",
		"料理", "美食城", "food", "eat", "dining", "restaurant", "coffee", "cafe", "mcdonald's", "kfc", "starbucks",
	}},
	{category: domain.TypeTransportation, keywords: []string{
		"地铁", "公交", "滴滴", "打车", "出租车", "共享单车", "单车", "自行车", "火车", "高铁", "机票", "bus", "subway",
		"taxi", "ride", "bike", "transportation", "travel", "airport", "railway", "station", "轨道交通",
	}},
	{category: domain.TypeShopping, keywords: []string{
		"淘宝", "天猫", "京东", "拼多多", "亚马逊", "当当", "唯品会", "苏宁易购", "国美电器", "超市", "商场", "购物",
		"消费", "买", "purchase", "shop", "shopping", "tmall", "taobao", "jd.com", "pdd", "amazon", "supermarket",
		"mall", "store", "门店", "便利店", "7-eleven", "全家", "屈臣氏", "沃尔玛", "家乐福", "华联", "物美", "永辉",
		"京客隆", "超市发",
	}},
	{category: domain.TypeEntertainment, keywords: []string{
		"电影", "ktv", "酒吧", "剧院", "演出", "展览", "演唱会", "音乐会", "体育赛事", "健身", "运动", "游戏", "视频会员",
		"音乐会员", "电影票", "bar", "theater", "performance", "exhibition", "concert", "sports", "fitness",
		"exercise", "game", "movie", "entertainment", "leisure",
	}},
	{category: domain.TypeDailyNecessities, keywords: []string{
		"日用品", "百货", "家居", "家纺", "厨具", "餐具", "家电", "电器", "数码", "手机", "电脑", "办公用品", "文具",
		"纸巾", "牙膏", "洗发水", "沐浴露", "洗衣液", "卫生巾", "household", "daily use", "necessities", "home",
		"furniture", "appliance", "digital", "stationery", "paper", "tissue", "toothpaste", "shampoo", "body wash",
		"laundry detergent",
	}},
	{category: domain.TypeSupermarket, keywords: []string{
		"超市", "商场", "shopping mall", "supermarket", "mart", "grocery store", "hypermarket",
	}},
	{category: domain.TypeGroceries, keywords: []string{
		"生鲜", "水果", "蔬菜", "肉", "禽", "蛋", "海鲜", "水产", "dairy", "fruit", "vegetable", "meat", "seafood",
		"grocery", "produce", "fresh food",
	}},
	{category: domain.TypeDigitalProducts, keywords: []string{
		"数码产品", "电子产品", "家电", "手机", "电脑", "平板", "相机", "电视", "冰箱", "洗衣机", "空调",
		"digital product", "electronics", "appliance", "mobile phone", "computer", "tablet", "camera", "tv",
		"refrigerator", "washing machine", "air conditioner",
	}},
	{category: domain.TypeClothing, keywords: []string{
		"服装", "衣服", "鞋子", "包", "帽子", "围巾", "手套", "fashion", "clothing", "clothes", "shoes", "bags",
		"hats", "scarves", "gloves",
	}},
	{category: domain.TypeBeauty, keywords: []string{
		"化妆品", "护肤品", "彩妆", "香水", "personal care", "beauty", "cosmetics", "makeup", "perfume", "skincare",
		"美容", "个护",
	}},
	{category: domain.TypeBooksMedia, keywords: []string{
		"图书", "书籍", "书店", "音像制品", "电影", "音乐", "唱片", "书本", "杂志", "报纸", "电子书", "ebook", "books",
		"bookstore", "media", "film", "music", "cd", "magazine", "newspaper",
	}},
	{category: domain.TypeTravel, keywords: []string{
		"旅行", "酒店", "住宿", "景点", "机票", "火车票", "旅游", "旅馆", "客栈", "酒店住宿", "hotel", "accommodation",
		"scenic spot", "flight ticket", "train ticket", "travel", "tourism", "hostel", "inn",
	}},
	{category: domain.TypeHousing, keywords: []string{
		"房租", "物业费", "房贷", "租房", "mortgage", "rent", "property management fee", "housing payment",
	}},
	{category: domain.TypeUtilities, keywords: []string{
		"水费", "电费", "燃气费", "energy bill", "water bill", "electricity bill", "gas bill", "utility bill",
		"水电费", "煤气费",
	}},
	{category: domain.TypeTelecom, keywords: []string{
		"话费", "流量费", "宽带费", "网费", "通讯费", "电话费", "手机费", "通信费", "telecommunication fee",
		"phone bill", "mobile bill", "internet fee", "broadband fee", "network fee",
	}},
	{category: domain.TypeFinancialServices, keywords: []string{
		"理财", "保险", "证券", "基金", "股票", "期货", "银行", "支付", "贷款", "finance", "insurance", "securities",
		"fund", "stock", "futures", "bank", "payment", "loan", "金融", "理财产品", "investment",
	}},
	{category: domain.TypeSalary, keywords: []string{
		"工资", "薪资", "salary", "wage", "income", "收入-工资",
	}},
	{category: domain.TypeInvestmentIncome, keywords: []string{
		"投资收入", "理财收入", "分红", "dividend", "investment income", "wealth management income",
	}},
	{category: domain.TypeInterest, keywords: []string{
		"利息", "interest", "收益-利息",
	}},
	{category: domain.TypeTaxRefund, keywords: []string{
		"退税", "tax refund",
	}},
	{category: domain.TypeCreditCardRepayment, keywords: []string{
		"信用卡还款", "credit card repayment",
	}},
	{category: domain.TypeCashWithdrawal, keywords: []string{
		"现金提取", "提现", "withdraw", "cash withdrawal",
	}},
	{category: domain.TypePayment, keywords: []string{
		"支付", "付款", "缴费", "spend", "pay", "payment", "expense",
	}},
	{category: domain.TypeTransfer, keywords: []string{
		"转账", "transfer", "支出-转账",
	}},
	{category: domain.TypeRecharge, keywords: []string{
		"充值", "recharge", "收入-充值",
	}},
	{category: domain.TypeRefund, keywords: []string{
		"退款", "refund",
	}},
})

func compileRules(rules []classifierRule) []classifierRule {
	for i := range rules {
		alts := make([]string, len(rules[i].keywords))
		for j, kw := range rules[i].keywords {
			alts[j] = regexp.QuoteMeta(kw)
			if isASCIIWord(kw) {
				alts[j] += `\b`
			}
		}
		rules[i].pattern = regexp.MustCompile(`^(?:` + strings.Join(alts, "|") + `)`)
	}
	return rules
}

// isASCIIWord reports whether kw ends in an ASCII letter or digit, which is
// where a word boundary is meaningful.
func isASCIIWord(kw string) bool {
	if kw == "" {
		return false
	}
	c := kw[len(kw)-1]
	return c < 0x80 && (c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

// Classify assigns a category to a free-text transaction summary by matching
// keyword prefixes in a fixed order. Matching is case-insensitive and ignores
// surrounding whitespace; text matching no rule is TypeUnknown.
func Classify(summary string) domain.TransactionType {
	text := strings.ToLower(strings.TrimSpace(summary))
	if text == "" {
		return domain.TypeUnknown
	}
	for _, rule := range classifierRules {
		if rule.pattern.MatchString(text) {
			return rule.category
		}
	}
	return domain.TypeUnknown
}

// ClassifierOrder returns the categories in the order Classify tests them.
func ClassifierOrder() []domain.TransactionType {
	out := make([]domain.TransactionType, len(classifierRules))
	for i, r := range classifierRules {
		out[i] = r.category
	}
	return out
}
