package feed

import (
	"fmt"
	"path/filepath"
)

// Kind identifies one of the raw CSV exports in a report bundle.
type Kind int

const (
	KindCashManagement Kind = iota
	KindFinancialView
	KindSummaryItems
	KindSummarySales
	KindSummaryTransactions
	KindDetailOrders
	KindWaste
	KindOrderLines
)

// Kinds lists every feed in processing order.
var Kinds = []Kind{
	KindCashManagement,
	KindFinancialView,
	KindSummaryItems,
	KindSummarySales,
	KindSummaryTransactions,
	KindDetailOrders,
	KindWaste,
	KindOrderLines,
}

var kindInfo = map[Kind]struct {
	prefix string
	name   string
}{
	KindCashManagement:      {"Cash-Management", "cash_management"},
	KindFinancialView:       {"SalesEntryForm-FinancialView", "financial_view"},
	KindSummaryItems:        {"Summary-Items", "summary_items"},
	KindSummarySales:        {"Summary-Sales", "summary_sales"},
	KindSummaryTransactions: {"Summary-Transactions", "summary_transactions"},
	KindDetailOrders:        {"Detail-Orders", "detail_orders"},
	KindWaste:               {"Waste-Report", "waste"},
	KindOrderLines:          {"Detail-OrderLines", "order_lines"},
}

// Prefix is the filename prefix the POS export uses for this feed.
func (k Kind) Prefix() string { return kindInfo[k].prefix }

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Pattern returns the glob that matches this feed's files for date.
func (k Kind) Pattern(date string) string {
	return k.Prefix() + "-*_" + date + ".csv"
}

// Discover returns the files in dir belonging to kind for date, sorted.
func Discover(dir string, kind Kind, date string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, kind.Pattern(date)))
	if err != nil {
		return nil, fmt.Errorf("feed: glob %s: %w", kind, err)
	}
	return matches, nil
}
