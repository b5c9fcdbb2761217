package aggregate

import "github.com/shopspring/decimal"

// ChannelRow is one cell of the channel matrix: a metric for one
// (placed, fulfilled) method pair.
type ChannelRow struct {
	Store           string
	Date            string
	Category        string
	SubCategory     string
	PlacedMethod    string
	FulfilledMethod string
	Amount          decimal.Decimal
}

// BreadBoost counts bread attach for classic and other pizza orders.
type BreadBoost struct {
	Store               string
	Date                string
	ClassicOrder        int64
	ClassicWithBread    int64
	OtherPizzaOrder     int64
	OtherPizzaWithBread int64
}

// DeliverySummary is the economics of first-party (mobile/website) delivery.
type DeliverySummary struct {
	Store                 string
	Date                  string
	OrdersCount           int64
	ProductCost           decimal.Decimal
	Tax                   decimal.Decimal
	OccupationalTax       decimal.Decimal
	DeliveryCharges       decimal.Decimal
	DeliveryChargesTaxes  decimal.Decimal
	ServiceCharges        decimal.Decimal
	ServiceChargesTaxes   decimal.Decimal
	SmallOrderCharge      decimal.Decimal
	SmallOrderChargeTaxes decimal.Decimal
	DeliveryLateCharge    decimal.Decimal
	Tip                   decimal.Decimal
	TipTax                decimal.Decimal
	TotalTaxes            decimal.Decimal
	OrderTotal            decimal.Decimal
}

// MarketplaceOrders sums third-party marketplace channels.
type MarketplaceOrders struct {
	Store                string
	Date                 string
	DoorDashProductCosts decimal.Decimal
	DoorDashTax          decimal.Decimal
	DoorDashOrderTotal   decimal.Decimal
	UberEatsProductCosts decimal.Decimal
	UberEatsTax          decimal.Decimal
	UberEatsOrderTotal   decimal.Decimal
	GrubhubProductCosts  decimal.Decimal
	GrubhubTax           decimal.Decimal
	GrubhubOrderTotal    decimal.Decimal
}

// DiscountOrder is one promo order in the online discount ledger.
type DiscountOrder struct {
	Store            string
	Date             string
	OrderID          string
	PayType          string
	OriginalSubtotal decimal.Decimal
	ModifiedSubtotal decimal.Decimal
	PromoCode        string
}

// FinanceData is the per-store daily finance sheet.
type FinanceData struct {
	Store        string
	BusinessDate string

	PizzaCarryout      decimal.Decimal
	HNRCarryout        decimal.Decimal
	BreadCarryout      decimal.Decimal
	WingsCarryout      decimal.Decimal
	BeveragesCarryout  decimal.Decimal
	OtherFoodsCarryout decimal.Decimal
	SideItemsCarryout  decimal.Decimal
	PizzaDelivery      decimal.Decimal
	HNRDelivery        decimal.Decimal
	BreadDelivery      decimal.Decimal
	WingsDelivery      decimal.Decimal
	BeveragesDelivery  decimal.Decimal
	OtherFoodsDelivery decimal.Decimal
	SideItemsDelivery  decimal.Decimal
	DeliveryCharges    decimal.Decimal
	TotalNetSales      decimal.Decimal

	CustomerCount        int64
	GiftCardNonRoyalty   decimal.Decimal
	TotalNonRoyaltySales decimal.Decimal
	TotalNonDeliveryTips decimal.Decimal

	SalesTaxFoodBeverage  decimal.Decimal
	SalesTaxDelivery      decimal.Decimal
	TotalSalesTaxQuantity decimal.Decimal

	DeliveryQuantity           int64
	DeliveryFee                decimal.Decimal
	DeliveryServiceFee         decimal.Decimal
	DeliverySmallOrderFee      decimal.Decimal
	DeliveryLateToPortalFee    decimal.Decimal
	TotalNativeAppDeliveryFees decimal.Decimal
	DeliveryTips               decimal.Decimal

	DoorDashQuantity   int64
	DoorDashOrderTotal decimal.Decimal
	GrubhubQuantity    int64
	GrubhubOrderTotal  decimal.Decimal
	UberEatsQuantity   int64
	UberEatsOrderTotal decimal.Decimal

	OnlineMobileOrderQuantity int64
	OnlineOrderQuantity       int64
	OnlinePayInStore          int64
	AgentPrePaid              int64
	AgentPayInStore           int64

	PrePaidCashOrders    decimal.Decimal
	PrePaidNonCashOrders decimal.Decimal
	PrePaidSales         decimal.Decimal
	PrepaidDeliveryTips  decimal.Decimal
	PrepaidInStoreTips   decimal.Decimal

	MarketplaceNonCash   decimal.Decimal
	AMEX                 decimal.Decimal
	TotalNonCashPayments decimal.Decimal
	CreditCardPayments   decimal.Decimal
	DebitPayments        decimal.Decimal
	EPayPayments         decimal.Decimal
	NonCashPayments      decimal.Decimal
	CashSales            decimal.Decimal
	CashDropTotal        decimal.Decimal
	OverShort            decimal.Decimal
	Payouts              decimal.Decimal
}

// FinalSummary holds the headline KPIs for a store and day.
type FinalSummary struct {
	Store        string
	BusinessDate string

	TotalSales       decimal.Decimal
	ModifiedOrderQty int64
	RefundedOrderQty int64
	CustomerCount    int64

	PhoneSales      decimal.Decimal
	CallCenterSales decimal.Decimal
	DriveThruSales  decimal.Decimal
	WebsiteSales    decimal.Decimal
	MobileSales     decimal.Decimal
	DoorDashSales   decimal.Decimal
	GrubhubSales    decimal.Decimal
	UberEatsSales   decimal.Decimal
	DeliverySales   decimal.Decimal

	DigitalSalesPercent   decimal.Decimal
	PortalTransactions    int64
	PutIntoPortal         int64
	PortalUsedPercent     decimal.Decimal
	PutInPortalOnTime     int64
	InPortalOnTimePercent decimal.Decimal

	DeliveryTips            decimal.Decimal
	PrepaidDeliveryTips     decimal.Decimal
	InStoreTipAmount        decimal.Decimal
	PrepaidInStoreTipAmount decimal.Decimal
	TotalTips               decimal.Decimal

	OverShort      decimal.Decimal
	CashSales      decimal.Decimal
	TotalWasteCost decimal.Decimal
}

// HourlySales is one hour of channel-split sales, keyed by promise hour.
type HourlySales struct {
	Store           string
	BusinessDate    string
	Hour            int
	TotalSales      decimal.Decimal
	PhoneSales      decimal.Decimal
	CallCenterSales decimal.Decimal
	DriveThruSales  decimal.Decimal
	WebsiteSales    decimal.Decimal
	MobileSales     decimal.Decimal
	OrderCount      int64
}
