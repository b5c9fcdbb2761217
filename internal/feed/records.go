package feed

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CashManagement is a till-level cash verification event.
type CashManagement struct {
	Store            string
	BusinessDate     string
	CreateDatetime   *time.Time
	VerifiedDatetime *time.Time
	Till             string
	CheckType        string
	SystemTotals     decimal.Decimal
	Verified         decimal.Decimal
	Variance         decimal.Decimal
	CreatedBy        string
	VerifiedBy       string
}

// FinancialView is one named financial line item for a store/day.
type FinancialView struct {
	Store        string
	BusinessDate string
	Area         string
	SubAccount   string
	Amount       decimal.Decimal
}

type SummaryItem struct {
	Store             string
	BusinessDate      string
	MenuItemName      string
	MenuItemAccount   string
	ItemID            string
	ItemQuantity      int64
	RoyaltyObligation decimal.Decimal
	TaxableAmount     decimal.Decimal
	NonTaxableAmount  decimal.Decimal
	TaxExemptAmount   decimal.Decimal
	NonRoyaltyAmount  decimal.Decimal
	TaxIncludedAmount decimal.Decimal
}

type SummarySale struct {
	Store                   string
	BusinessDate            string
	RoyaltyObligation       decimal.Decimal
	CustomerCount           int64
	TaxableAmount           decimal.Decimal
	NonTaxableAmount        decimal.Decimal
	TaxExemptAmount         decimal.Decimal
	NonRoyaltyAmount        decimal.Decimal
	RefundAmount            decimal.Decimal
	SalesTax                decimal.Decimal
	GrossSales              decimal.Decimal
	OccupationalTax         decimal.Decimal
	DeliveryTip             decimal.Decimal
	DeliveryFee             decimal.Decimal
	DeliveryServiceFee      decimal.Decimal
	DeliverySmallOrderFee   decimal.Decimal
	ModifiedOrderAmount     decimal.Decimal
	StoreTipAmount          decimal.Decimal
	PrepaidCashOrders       decimal.Decimal
	PrepaidNonCashOrders    decimal.Decimal
	PrepaidSales            decimal.Decimal
	PrepaidDeliveryTip      decimal.Decimal
	PrepaidInStoreTipAmount decimal.Decimal
	OverShort               decimal.Decimal
	PreviousDayRefunds      decimal.Decimal
	SAF                     decimal.Decimal
	ManagerNotes            string
}

type SummaryTransaction struct {
	Store            string
	BusinessDate     string
	PaymentMethod    string
	SubPaymentMethod string
	TotalAmount      decimal.Decimal
	SAFQty           int64
	SAFTotal         decimal.Decimal
}

// DetailOrder is one order with its channel, money breakdown and portal
// flags. Flag columns keep the feed's text ("Yes"/"No").
type DetailOrder struct {
	Store                          string
	BusinessDate                   string
	DateTimePlaced                 *time.Time
	DateTimeFulfilled              *time.Time
	RoyaltyObligation              decimal.Decimal
	Quantity                       int64
	CustomerCount                  int64
	OrderID                        string
	TaxableAmount                  decimal.Decimal
	NonTaxableAmount               decimal.Decimal
	TaxExemptAmount                decimal.Decimal
	NonRoyaltyAmount               decimal.Decimal
	SalesTax                       decimal.Decimal
	Employee                       string
	GrossSales                     decimal.Decimal
	OccupationalTax                decimal.Decimal
	OverrideApprovalEmployee       string
	OrderPlacedMethod              string
	DeliveryTip                    decimal.Decimal
	DeliveryTipTax                 decimal.Decimal
	OrderFulfilledMethod           string
	DeliveryFee                    decimal.Decimal
	ModifiedOrderAmount            decimal.Decimal
	DeliveryFeeTax                 decimal.Decimal
	ModificationReason             string
	PaymentMethods                 string
	DeliveryServiceFee             decimal.Decimal
	DeliveryServiceFeeTax          decimal.Decimal
	Refunded                       string
	DeliverySmallOrderFee          decimal.Decimal
	DeliverySmallOrderFeeTax       decimal.Decimal
	TransactionType                string
	StoreTipAmount                 decimal.Decimal
	PromiseDate                    *time.Time
	TaxExemptionID                 string
	TaxExemptionEntityName         string
	UserID                         string
	HNROrder                       string
	BrokenPromise                  string
	PortalEligible                 string
	PortalUsed                     string
	PutIntoPortalBeforePromiseTime string
	PortalCompartmentsUsed         string
	TimeLoadedIntoPortal           *time.Time
}

// OrderLine is a single menu item within an order.
type OrderLine struct {
	Store                    string
	BusinessDate             string
	DateTimePlaced           *time.Time
	DateTimeFulfilled        *time.Time
	NetAmount                decimal.Decimal
	Quantity                 int64
	RoyaltyItem              string
	TaxableItem              string
	OrderID                  string
	ItemID                   string
	MenuItemName             string
	MenuItemAccount          string
	BundleName               string
	Employee                 string
	OverrideApprovalEmployee string
	OrderPlacedMethod        string
	OrderFulfilledMethod     string
	ModifiedOrderAmount      decimal.Decimal
	ModificationReason       string
	PaymentMethods           string
	Refunded                 string
	TaxIncludedAmount        decimal.Decimal
}

// Waste is one wasted or expired item.
type Waste struct {
	Store           string
	BusinessDate    string
	CVItemID        string
	MenuItemName    string
	Expired         bool
	WasteDateTime   *time.Time
	ProduceDateTime *time.Time
	WasteReason     string
	CVOrderID       string
	WasteType       string
	ItemCost        decimal.Decimal
	Quantity        decimal.Decimal
}

// Yes reports whether a feed flag column is affirmative.
func Yes(flag string) bool {
	return strings.EqualFold(strings.TrimSpace(flag), "yes")
}

// FlagAmount turns a flag column into a summable amount: numeric text keeps
// its value, "Yes"/"True" count as one, anything else is zero.
func FlagAmount(flag string) decimal.Decimal {
	s := strings.TrimSpace(flag)
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}
	if strings.EqualFold(s, "yes") || strings.EqualFold(s, "true") {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}
