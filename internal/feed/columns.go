package feed

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/allaspectsdev/storepulse/internal/temporal"
)

// column maps one raw (lowercase) CSV header to a typed record field.
type column[T any] struct {
	raw string
	set func(rec *T, value string, d *decoder)
}

func text[T any](raw string, field func(*T) *string) column[T] {
	return column[T]{raw: raw, set: func(r *T, v string, _ *decoder) { *field(r) = v }}
}

func money[T any](raw string, field func(*T) *decimal.Decimal) column[T] {
	return column[T]{raw: raw, set: func(r *T, v string, d *decoder) { *field(r) = d.money(raw, v) }}
}

func integer[T any](raw string, field func(*T) *int64) column[T] {
	return column[T]{raw: raw, set: func(r *T, v string, d *decoder) { *field(r) = d.integer(raw, v) }}
}

func stamp[T any](raw string, field func(*T) **time.Time) column[T] {
	return column[T]{raw: raw, set: func(r *T, v string, _ *decoder) { *field(r) = temporal.ParsePtr(v) }}
}

func flag[T any](raw string, field func(*T) *bool) column[T] {
	return column[T]{raw: raw, set: func(r *T, v string, _ *decoder) { *field(r) = Yes(v) }}
}

// decoder converts raw cell text, counting malformed numeric cells per column.
type decoder struct {
	kind      Kind
	malformed map[string]int
}

func newDecoder(kind Kind) *decoder {
	return &decoder{kind: kind, malformed: map[string]int{}}
}

func (d *decoder) money(raw, v string) decimal.Decimal {
	s := strings.TrimSpace(v)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
	out, err := decimal.NewFromString(s)
	if err != nil {
		d.malformed[raw]++
		return decimal.Zero
	}
	return out
}

func (d *decoder) integer(raw, v string) int64 {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n
	}
	// Some exports render counts as "3.0".
	if f, ferr := decimal.NewFromString(s); ferr == nil {
		return f.IntPart()
	}
	d.malformed[raw]++
	return 0
}

// report logs one warning per column that had malformed cells.
func (d *decoder) report(path string) int {
	total := 0
	for col, n := range d.malformed {
		total += n
		log.Warn().
			Str("feed", d.kind.String()).
			Str("file", path).
			Str("column", col).
			Int("cells", n).
			Msg("feed: malformed numeric cells read as zero")
	}
	return total
}

func decode[T any](rows []Row, cols []column[T], d *decoder) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var rec T
		for _, c := range cols {
			c.set(&rec, row[c.raw], d)
		}
		out = append(out, rec)
	}
	return out
}

var cashManagementColumns = []column[CashManagement]{
	text("franchisestore", func(r *CashManagement) *string { return &r.Store }),
	text("businessdate", func(r *CashManagement) *string { return &r.BusinessDate }),
	stamp("createdatetime", func(r *CashManagement) **time.Time { return &r.CreateDatetime }),
	stamp("verifieddatetime", func(r *CashManagement) **time.Time { return &r.VerifiedDatetime }),
	text("till", func(r *CashManagement) *string { return &r.Till }),
	text("checktype", func(r *CashManagement) *string { return &r.CheckType }),
	money("systemtotals", func(r *CashManagement) *decimal.Decimal { return &r.SystemTotals }),
	money("verified", func(r *CashManagement) *decimal.Decimal { return &r.Verified }),
	money("variance", func(r *CashManagement) *decimal.Decimal { return &r.Variance }),
	text("createdby", func(r *CashManagement) *string { return &r.CreatedBy }),
	text("verifiedby", func(r *CashManagement) *string { return &r.VerifiedBy }),
}

var financialViewColumns = []column[FinancialView]{
	text("franchisestore", func(r *FinancialView) *string { return &r.Store }),
	text("businessdate", func(r *FinancialView) *string { return &r.BusinessDate }),
	text("area", func(r *FinancialView) *string { return &r.Area }),
	text("subaccount", func(r *FinancialView) *string { return &r.SubAccount }),
	money("amount", func(r *FinancialView) *decimal.Decimal { return &r.Amount }),
}

var summaryItemColumns = []column[SummaryItem]{
	text("franchisestore", func(r *SummaryItem) *string { return &r.Store }),
	text("businessdate", func(r *SummaryItem) *string { return &r.BusinessDate }),
	text("menuitemname", func(r *SummaryItem) *string { return &r.MenuItemName }),
	text("menuitemaccount", func(r *SummaryItem) *string { return &r.MenuItemAccount }),
	text("itemid", func(r *SummaryItem) *string { return &r.ItemID }),
	integer("itemquantity", func(r *SummaryItem) *int64 { return &r.ItemQuantity }),
	money("royaltyobligation", func(r *SummaryItem) *decimal.Decimal { return &r.RoyaltyObligation }),
	money("taxableamount", func(r *SummaryItem) *decimal.Decimal { return &r.TaxableAmount }),
	money("nontaxableamount", func(r *SummaryItem) *decimal.Decimal { return &r.NonTaxableAmount }),
	money("taxexemptamount", func(r *SummaryItem) *decimal.Decimal { return &r.TaxExemptAmount }),
	money("nonroyaltyamount", func(r *SummaryItem) *decimal.Decimal { return &r.NonRoyaltyAmount }),
	money("taxincludedamount", func(r *SummaryItem) *decimal.Decimal { return &r.TaxIncludedAmount }),
}

var summarySaleColumns = []column[SummarySale]{
	text("franchisestore", func(r *SummarySale) *string { return &r.Store }),
	text("businessdate", func(r *SummarySale) *string { return &r.BusinessDate }),
	money("royaltyobligation", func(r *SummarySale) *decimal.Decimal { return &r.RoyaltyObligation }),
	integer("customercount", func(r *SummarySale) *int64 { return &r.CustomerCount }),
	money("taxableamount", func(r *SummarySale) *decimal.Decimal { return &r.TaxableAmount }),
	money("nontaxableamount", func(r *SummarySale) *decimal.Decimal { return &r.NonTaxableAmount }),
	money("taxexemptamount", func(r *SummarySale) *decimal.Decimal { return &r.TaxExemptAmount }),
	money("nonroyaltyamount", func(r *SummarySale) *decimal.Decimal { return &r.NonRoyaltyAmount }),
	money("refundamount", func(r *SummarySale) *decimal.Decimal { return &r.RefundAmount }),
	money("salestax", func(r *SummarySale) *decimal.Decimal { return &r.SalesTax }),
	money("grosssales", func(r *SummarySale) *decimal.Decimal { return &r.GrossSales }),
	money("occupationaltax", func(r *SummarySale) *decimal.Decimal { return &r.OccupationalTax }),
	money("deliverytip", func(r *SummarySale) *decimal.Decimal { return &r.DeliveryTip }),
	money("deliveryfee", func(r *SummarySale) *decimal.Decimal { return &r.DeliveryFee }),
	money("deliveryservicefee", func(r *SummarySale) *decimal.Decimal { return &r.DeliveryServiceFee }),
	money("deliverysmallorderfee", func(r *SummarySale) *decimal.Decimal { return &r.DeliverySmallOrderFee }),
	money("modifiedorderamount", func(r *SummarySale) *decimal.Decimal { return &r.ModifiedOrderAmount }),
	money("storetipamount", func(r *SummarySale) *decimal.Decimal { return &r.StoreTipAmount }),
	money("prepaidcashorders", func(r *SummarySale) *decimal.Decimal { return &r.PrepaidCashOrders }),
	money("prepaidnoncashorders", func(r *SummarySale) *decimal.Decimal { return &r.PrepaidNonCashOrders }),
	money("prepaidsales", func(r *SummarySale) *decimal.Decimal { return &r.PrepaidSales }),
	money("prepaiddeliverytip", func(r *SummarySale) *decimal.Decimal { return &r.PrepaidDeliveryTip }),
	money("prepaidinstoretipamount", func(r *SummarySale) *decimal.Decimal { return &r.PrepaidInStoreTipAmount }),
	money("overshort", func(r *SummarySale) *decimal.Decimal { return &r.OverShort }),
	money("previousdayrefunds", func(r *SummarySale) *decimal.Decimal { return &r.PreviousDayRefunds }),
	money("saf", func(r *SummarySale) *decimal.Decimal { return &r.SAF }),
	text("managernotes", func(r *SummarySale) *string { return &r.ManagerNotes }),
}

var summaryTransactionColumns = []column[SummaryTransaction]{
	text("franchisestore", func(r *SummaryTransaction) *string { return &r.Store }),
	text("businessdate", func(r *SummaryTransaction) *string { return &r.BusinessDate }),
	text("paymentmethod", func(r *SummaryTransaction) *string { return &r.PaymentMethod }),
	text("subpaymentmethod", func(r *SummaryTransaction) *string { return &r.SubPaymentMethod }),
	money("totalamount", func(r *SummaryTransaction) *decimal.Decimal { return &r.TotalAmount }),
	integer("safqty", func(r *SummaryTransaction) *int64 { return &r.SAFQty }),
	money("saftotal", func(r *SummaryTransaction) *decimal.Decimal { return &r.SAFTotal }),
}

var detailOrderColumns = []column[DetailOrder]{
	text("franchisestore", func(r *DetailOrder) *string { return &r.Store }),
	text("businessdate", func(r *DetailOrder) *string { return &r.BusinessDate }),
	stamp("datetimeplaced", func(r *DetailOrder) **time.Time { return &r.DateTimePlaced }),
	stamp("datetimefulfilled", func(r *DetailOrder) **time.Time { return &r.DateTimeFulfilled }),
	money("royaltyobligation", func(r *DetailOrder) *decimal.Decimal { return &r.RoyaltyObligation }),
	integer("quantity", func(r *DetailOrder) *int64 { return &r.Quantity }),
	integer("customercount", func(r *DetailOrder) *int64 { return &r.CustomerCount }),
	text("orderid", func(r *DetailOrder) *string { return &r.OrderID }),
	money("taxableamount", func(r *DetailOrder) *decimal.Decimal { return &r.TaxableAmount }),
	money("nontaxableamount", func(r *DetailOrder) *decimal.Decimal { return &r.NonTaxableAmount }),
	money("taxexemptamount", func(r *DetailOrder) *decimal.Decimal { return &r.TaxExemptAmount }),
	money("nonroyaltyamount", func(r *DetailOrder) *decimal.Decimal { return &r.NonRoyaltyAmount }),
	money("salestax", func(r *DetailOrder) *decimal.Decimal { return &r.SalesTax }),
	text("employee", func(r *DetailOrder) *string { return &r.Employee }),
	money("grosssales", func(r *DetailOrder) *decimal.Decimal { return &r.GrossSales }),
	money("occupationaltax", func(r *DetailOrder) *decimal.Decimal { return &r.OccupationalTax }),
	text("overrideapprovalemployee", func(r *DetailOrder) *string { return &r.OverrideApprovalEmployee }),
	text("orderplacedmethod", func(r *DetailOrder) *string { return &r.OrderPlacedMethod }),
	money("deliverytip", func(r *DetailOrder) *decimal.Decimal { return &r.DeliveryTip }),
	money("deliverytiptax", func(r *DetailOrder) *decimal.Decimal { return &r.DeliveryTipTax }),
	text("orderfulfilledmethod", func(r *DetailOrder) *string { return &r.OrderFulfilledMethod }),
	money("deliveryfee", func(r *DetailOrder) *decimal.Decimal { return &r.DeliveryFee }),
	money("modifiedorderamount", func(r *DetailOrder) *decimal.Decimal { return &r.ModifiedOrderAmount }),
	money("deliveryfeetax", func(r *DetailOrder) *decimal.Decimal { return &r.DeliveryFeeTax }),
	text("modificationreason", func(r *DetailOrder) *string { return &r.ModificationReason }),
	text("paymentmethods", func(r *DetailOrder) *string { return &r.PaymentMethods }),
	money("deliveryservicefee", func(r *DetailOrder) *decimal.Decimal { return &r.DeliveryServiceFee }),
	money("deliveryservicefeetax", func(r *DetailOrder) *decimal.Decimal { return &r.DeliveryServiceFeeTax }),
	text("refunded", func(r *DetailOrder) *string { return &r.Refunded }),
	money("deliverysmallorderfee", func(r *DetailOrder) *decimal.Decimal { return &r.DeliverySmallOrderFee }),
	money("deliverysmallorderfeetax", func(r *DetailOrder) *decimal.Decimal { return &r.DeliverySmallOrderFeeTax }),
	text("transactiontype", func(r *DetailOrder) *string { return &r.TransactionType }),
	money("storetipamount", func(r *DetailOrder) *decimal.Decimal { return &r.StoreTipAmount }),
	stamp("promisedate", func(r *DetailOrder) **time.Time { return &r.PromiseDate }),
	text("taxexemptionid", func(r *DetailOrder) *string { return &r.TaxExemptionID }),
	text("taxexemptionentityname", func(r *DetailOrder) *string { return &r.TaxExemptionEntityName }),
	text("userid", func(r *DetailOrder) *string { return &r.UserID }),
	text("hnrorder", func(r *DetailOrder) *string { return &r.HNROrder }),
	text("brokenpromise", func(r *DetailOrder) *string { return &r.BrokenPromise }),
	text("portaleligible", func(r *DetailOrder) *string { return &r.PortalEligible }),
	text("portalused", func(r *DetailOrder) *string { return &r.PortalUsed }),
	text("putintoportalbeforepromisetime", func(r *DetailOrder) *string { return &r.PutIntoPortalBeforePromiseTime }),
	text("portalcompartmentsused", func(r *DetailOrder) *string { return &r.PortalCompartmentsUsed }),
	stamp("timeloadedintoportal", func(r *DetailOrder) **time.Time { return &r.TimeLoadedIntoPortal }),
}

var orderLineColumns = []column[OrderLine]{
	text("franchisestore", func(r *OrderLine) *string { return &r.Store }),
	text("businessdate", func(r *OrderLine) *string { return &r.BusinessDate }),
	stamp("datetimeplaced", func(r *OrderLine) **time.Time { return &r.DateTimePlaced }),
	stamp("datetimefulfilled", func(r *OrderLine) **time.Time { return &r.DateTimeFulfilled }),
	money("netamount", func(r *OrderLine) *decimal.Decimal { return &r.NetAmount }),
	integer("quantity", func(r *OrderLine) *int64 { return &r.Quantity }),
	text("royaltyitem", func(r *OrderLine) *string { return &r.RoyaltyItem }),
	text("taxableitem", func(r *OrderLine) *string { return &r.TaxableItem }),
	text("orderid", func(r *OrderLine) *string { return &r.OrderID }),
	text("itemid", func(r *OrderLine) *string { return &r.ItemID }),
	text("menuitemname", func(r *OrderLine) *string { return &r.MenuItemName }),
	text("menuitemaccount", func(r *OrderLine) *string { return &r.MenuItemAccount }),
	text("bundlename", func(r *OrderLine) *string { return &r.BundleName }),
	text("employee", func(r *OrderLine) *string { return &r.Employee }),
	text("overrideapprovalemployee", func(r *OrderLine) *string { return &r.OverrideApprovalEmployee }),
	text("orderplacedmethod", func(r *OrderLine) *string { return &r.OrderPlacedMethod }),
	text("orderfulfilledmethod", func(r *OrderLine) *string { return &r.OrderFulfilledMethod }),
	money("modifiedorderamount", func(r *OrderLine) *decimal.Decimal { return &r.ModifiedOrderAmount }),
	text("modificationreason", func(r *OrderLine) *string { return &r.ModificationReason }),
	text("paymentmethods", func(r *OrderLine) *string { return &r.PaymentMethods }),
	text("refunded", func(r *OrderLine) *string { return &r.Refunded }),
	money("taxincludedamount", func(r *OrderLine) *decimal.Decimal { return &r.TaxIncludedAmount }),
}

var wasteColumns = []column[Waste]{
	text("franchisestore", func(r *Waste) *string { return &r.Store }),
	text("businessdate", func(r *Waste) *string { return &r.BusinessDate }),
	text("cvitemid", func(r *Waste) *string { return &r.CVItemID }),
	text("menuitemname", func(r *Waste) *string { return &r.MenuItemName }),
	flag("expired", func(r *Waste) *bool { return &r.Expired }),
	stamp("wastedatetime", func(r *Waste) **time.Time { return &r.WasteDateTime }),
	stamp("producedatetime", func(r *Waste) **time.Time { return &r.ProduceDateTime }),
	text("wastereason", func(r *Waste) *string { return &r.WasteReason }),
	text("cvorderid", func(r *Waste) *string { return &r.CVOrderID }),
	text("wastetype", func(r *Waste) *string { return &r.WasteType }),
	money("itemcost", func(r *Waste) *decimal.Decimal { return &r.ItemCost }),
	money("quantity", func(r *Waste) *decimal.Decimal { return &r.Quantity }),
}
