package aggregate

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/allaspectsdev/storepulse/internal/feed"
)

// Financial-view sub-accounts read by the finance sheet and summary.
const (
	subPizzaCarryout      = "Pizza - Carryout"
	subHNRCarryout        = "HNR - Carryout"
	subBreadCarryout      = "Bread - Carryout"
	subWingsCarryout      = "Wings - Carryout"
	subBeveragesCarryout  = "Beverages - Carryout"
	subOtherFoodsCarryout = "Other Foods - Carryout"
	subSideItemsCarryout  = "Side Items - Carryout"
	subPizzaDelivery      = "Pizza - Delivery"
	subHNRDelivery        = "HNR - Delivery"
	subBreadDelivery      = "Bread - Delivery"
	subWingsDelivery      = "Wings - Delivery"
	subBeveragesDelivery  = "Beverages - Delivery"
	subOtherFoodsDelivery = "Other Foods - Delivery"
	subSideItemsDelivery  = "Side Items - Delivery"
	subDeliveryFees       = "Delivery-Fees"

	subGiftCard           = "Gift Card"
	subNonRoyalty         = "Non-Royalty"
	subSalesTax           = "Sales-Tax"
	subDeliveryTips       = "Delivery-Tips"
	subPrepaidDelTips     = "Prepaid-Delivery-Tips"
	subInStoreTips        = "InStoreTipAmount"
	subPrepaidStoreTips   = "Prepaid-InStoreTipAmount"
	subPrePaidCash        = "PrePaidCash-Orders"
	subPrePaidNonCash     = "PrePaidNonCash-Orders"
	subPrePaidSales       = "PrePaid-Sales"
	subNonCashPayments    = "Non-Cash-Payments"
	subDebit              = "Debit"
	subCashCheckDeposit   = "Cash-Check-Deposit"
	subCashDropTotal      = "Cash Drop Total"
	subOverShortOperating = "Over-Short-Operating"
	subOverShort          = "Over-Short"
	subPayouts            = "Payouts"
	subTotalCashSales     = "Total Cash Sales"

	areaStoreTips = "Store Tips"
)

var (
	netSalesAccounts = []string{
		subPizzaCarryout, subHNRCarryout, subBreadCarryout, subWingsCarryout,
		subBeveragesCarryout, subOtherFoodsCarryout, subSideItemsCarryout,
		subPizzaDelivery, subHNRDelivery, subBreadDelivery, subWingsDelivery,
		subBeveragesDelivery, subOtherFoodsDelivery, subSideItemsDelivery,
		subDeliveryFees,
	}
	marketplaceAccounts = []string{"Marketplace - DoorDash", "Marketplace - UberEats", "Marketplace - Grubhub"}
	amexAccounts        = []string{"Credit Card - AMEX", "EPay - AMEX"}
	creditCardAccounts  = []string{"Credit Card - Discover", "Credit Card - AMEX", "Credit Card - Visa/MC"}
	epayAccounts        = []string{"EPay - Visa/MC", "EPay - AMEX", "EPay - Discover"}
)

// ledger indexes financial-view amounts by sub-account and area.
type ledger struct {
	bySub  map[string]decimal.Decimal
	byArea map[string]decimal.Decimal
}

func newLedger(rows []feed.FinancialView) ledger {
	l := ledger{bySub: map[string]decimal.Decimal{}, byArea: map[string]decimal.Decimal{}}
	for _, r := range rows {
		l.bySub[r.SubAccount] = l.bySub[r.SubAccount].Add(r.Amount)
		l.byArea[r.Area] = l.byArea[r.Area].Add(r.Amount)
	}
	return l
}

// sum adds the amounts of the named sub-accounts; unknown names are zero.
func (l ledger) sum(subAccounts ...string) decimal.Decimal {
	total := decimal.Zero
	for _, s := range subAccounts {
		total = total.Add(l.bySub[s])
	}
	return total
}

func (l ledger) area(name string) decimal.Decimal { return l.byArea[name] }

func customerCount(orders []feed.DetailOrder) int64 {
	var n int64
	for _, o := range orders {
		n += o.CustomerCount
	}
	return n
}

func financeData(date, store string, orders []feed.DetailOrder, fin ledger, lateFee decimal.Decimal) FinanceData {
	salesTaxDelivery := sumBy(filter(orders, fulfilledIn(fulfilledDelivery)),
		func(o feed.DetailOrder) decimal.Decimal { return o.SalesTax })
	totalSalesTax := fin.sum(subSalesTax)

	amex := fin.sum(amexAccounts...)
	marketplaceNonCash := fin.sum(marketplaceAccounts...)
	giftCard := fin.sum(subGiftCard)
	totalNonCash := fin.sum(subNonCashPayments)
	overShortOperating := fin.sum(subOverShortOperating)

	inStore := fulfilledIn(inStoreFulfill...)

	return FinanceData{
		Store:        store,
		BusinessDate: date,

		PizzaCarryout:      fin.sum(subPizzaCarryout),
		HNRCarryout:        fin.sum(subHNRCarryout),
		BreadCarryout:      fin.sum(subBreadCarryout),
		WingsCarryout:      fin.sum(subWingsCarryout),
		BeveragesCarryout:  fin.sum(subBeveragesCarryout),
		OtherFoodsCarryout: fin.sum(subOtherFoodsCarryout),
		SideItemsCarryout:  fin.sum(subSideItemsCarryout),
		PizzaDelivery:      fin.sum(subPizzaDelivery),
		HNRDelivery:        fin.sum(subHNRDelivery),
		BreadDelivery:      fin.sum(subBreadDelivery),
		WingsDelivery:      fin.sum(subWingsDelivery),
		BeveragesDelivery:  fin.sum(subBeveragesDelivery),
		OtherFoodsDelivery: fin.sum(subOtherFoodsDelivery),
		SideItemsDelivery:  fin.sum(subSideItemsDelivery),
		DeliveryCharges:    fin.sum(subDeliveryFees),
		TotalNetSales:      fin.sum(netSalesAccounts...),

		CustomerCount:        customerCount(orders),
		GiftCardNonRoyalty:   giftCard,
		TotalNonRoyaltySales: fin.sum(subNonRoyalty),
		TotalNonDeliveryTips: fin.area(areaStoreTips),

		SalesTaxFoodBeverage:  totalSalesTax.Sub(salesTaxDelivery),
		SalesTaxDelivery:      salesTaxDelivery,
		TotalSalesTaxQuantity: totalSalesTax,

		DeliveryQuantity: countWhere(orders, func(o feed.DetailOrder) bool {
			return !o.DeliveryFee.IsZero() && !o.RoyaltyObligation.IsZero()
		}),
		DeliveryFee:                sumBy(orders, func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryFee }),
		DeliveryServiceFee:         sumBy(orders, func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryServiceFee }),
		DeliverySmallOrderFee:      sumBy(orders, func(o feed.DetailOrder) decimal.Decimal { return o.DeliverySmallOrderFee }),
		DeliveryLateToPortalFee:    lateFee,
		TotalNativeAppDeliveryFees: fin.sum(subDeliveryFees),
		DeliveryTips:               fin.sum(subDeliveryTips, subPrepaidDelTips),

		DoorDashQuantity:   countWhere(orders, placedIn(placedDoorDash)),
		DoorDashOrderTotal: sumBy(filter(orders, placedIn(placedDoorDash)), royalty),
		GrubhubQuantity:    countWhere(orders, placedIn(placedGrubhub)),
		GrubhubOrderTotal:  sumBy(filter(orders, placedIn(placedGrubhub)), royalty),
		UberEatsQuantity:   countWhere(orders, placedIn(placedUberEats)),
		UberEatsOrderTotal: sumBy(filter(orders, placedIn(placedUberEats)), royalty),

		OnlineMobileOrderQuantity: countWhere(orders, all(placedIn(placedMobile), nonZeroRoyalty)),
		OnlineOrderQuantity:       countWhere(orders, all(placedIn(placedWebsite), nonZeroRoyalty)),
		OnlinePayInStore:          countWhere(orders, all(placedIn(onlinePlaced...), inStore, nonZeroRoyalty)),
		AgentPrePaid:              countWhere(orders, all(placedIn(placedAgent), fulfilledIn(fulfilledDelivery), nonZeroRoyalty)),
		AgentPayInStore:           countWhere(orders, all(placedIn(placedAgent), inStore, nonZeroRoyalty)),

		PrePaidCashOrders:    fin.sum(subPrePaidCash),
		PrePaidNonCashOrders: fin.sum(subPrePaidNonCash),
		PrePaidSales:         fin.sum(subPrePaidSales),
		PrepaidDeliveryTips:  fin.sum(subPrepaidDelTips),
		PrepaidInStoreTips:   fin.sum(subPrepaidStoreTips),

		MarketplaceNonCash:   marketplaceNonCash,
		AMEX:                 amex,
		TotalNonCashPayments: totalNonCash,
		CreditCardPayments:   fin.sum(creditCardAccounts...),
		DebitPayments:        fin.sum(subDebit),
		EPayPayments:         fin.sum(epayAccounts...),
		NonCashPayments:      totalNonCash.Sub(amex).Sub(marketplaceNonCash).Sub(giftCard),
		CashSales:            fin.sum(subCashCheckDeposit),
		CashDropTotal:        fin.sum(subCashDropTotal).Add(overShortOperating),
		OverShort:            overShortOperating,
		Payouts:              fin.sum(subPayouts),
	}
}

func finalSummary(date, store string, orders []feed.DetailOrder, fin ledger, waste []feed.Waste) FinalSummary {
	placedSales := func(method string) decimal.Decimal {
		return sumBy(filter(orders, placedIn(method)), royalty)
	}

	total := sumBy(orders, royalty)
	website := placedSales(placedWebsite)
	mobile := placedSales(placedMobile)
	doordash := placedSales(placedDoorDash)
	grubhub := placedSales(placedGrubhub)
	ubereats := placedSales(placedUberEats)
	delivery := doordash.Add(grubhub).Add(ubereats).Add(mobile).Add(website)

	eligible := countWhere(orders, func(o feed.DetailOrder) bool { return feed.Yes(o.PortalEligible) })
	used := countWhere(orders, func(o feed.DetailOrder) bool { return feed.Yes(o.PortalUsed) })
	onTime := countWhere(orders, func(o feed.DetailOrder) bool { return feed.Yes(o.PutIntoPortalBeforePromiseTime) })
	eligibleDec := decimal.NewFromInt(eligible)

	deliveryTips := fin.sum(subDeliveryTips)
	prepaidDeliveryTips := fin.sum(subPrepaidDelTips)
	inStoreTips := fin.sum(subInStoreTips)
	prepaidInStoreTips := fin.sum(subPrepaidStoreTips)

	return FinalSummary{
		Store:        store,
		BusinessDate: date,

		TotalSales: total,
		ModifiedOrderQty: countWhere(orders, func(o feed.DetailOrder) bool {
			return strings.TrimSpace(o.OverrideApprovalEmployee) != ""
		}),
		RefundedOrderQty: countWhere(orders, func(o feed.DetailOrder) bool { return o.Refunded == "Yes" }),
		CustomerCount:    customerCount(orders),

		PhoneSales:      placedSales(placedPhone),
		CallCenterSales: placedSales(placedAgent),
		DriveThruSales:  placedSales(placedDriveThru),
		WebsiteSales:    website,
		MobileSales:     mobile,
		DoorDashSales:   doordash,
		GrubhubSales:    grubhub,
		UberEatsSales:   ubereats,
		DeliverySales:   delivery,

		DigitalSalesPercent:   ratio(delivery, total),
		PortalTransactions:    eligible,
		PutIntoPortal:         used,
		PortalUsedPercent:     ratio(decimal.NewFromInt(used), eligibleDec),
		PutInPortalOnTime:     onTime,
		InPortalOnTimePercent: ratio(decimal.NewFromInt(onTime), eligibleDec),

		DeliveryTips:            deliveryTips,
		PrepaidDeliveryTips:     prepaidDeliveryTips,
		InStoreTipAmount:        inStoreTips,
		PrepaidInStoreTipAmount: prepaidInStoreTips,
		TotalTips:               deliveryTips.Add(prepaidDeliveryTips).Add(inStoreTips).Add(prepaidInStoreTips),

		OverShort:      fin.sum(subOverShort),
		CashSales:      fin.sum(subTotalCashSales),
		TotalWasteCost: wasteCost(waste),
	}
}
