package store

import (
	"context"

	"github.com/allaspectsdev/storepulse/internal/aggregate"
)

// The methods below make *Store an aggregate.Sink.

func (s *Store) UpsertChannelRows(ctx context.Context, rows []aggregate.ChannelRow) error {
	return upsert(ctx, s, tableChannelData, rows, func(r aggregate.ChannelRow) []any {
		return []any{
			r.Store, r.Date, r.Category, r.SubCategory, r.PlacedMethod, r.FulfilledMethod,
			money(r.Amount),
		}
	})
}

func (s *Store) UpsertBreadBoost(ctx context.Context, r aggregate.BreadBoost) error {
	return upsert(ctx, s, tableBreadBoost, []aggregate.BreadBoost{r}, func(r aggregate.BreadBoost) []any {
		return []any{
			r.Store, r.Date,
			r.ClassicOrder, r.ClassicWithBread, r.OtherPizzaOrder, r.OtherPizzaWithBread,
		}
	})
}

func (s *Store) UpsertDeliverySummary(ctx context.Context, r aggregate.DeliverySummary) error {
	return upsert(ctx, s, tableDeliverySummary, []aggregate.DeliverySummary{r}, func(r aggregate.DeliverySummary) []any {
		return []any{
			r.Store, r.Date,
			r.OrdersCount, money(r.ProductCost), money(r.Tax), money(r.OccupationalTax),
			money(r.DeliveryCharges), money(r.DeliveryChargesTaxes), money(r.ServiceCharges),
			money(r.ServiceChargesTaxes), money(r.SmallOrderCharge), money(r.SmallOrderChargeTaxes),
			money(r.DeliveryLateCharge), money(r.Tip), money(r.TipTax), money(r.TotalTaxes),
			money(r.OrderTotal),
		}
	})
}

func (s *Store) UpsertMarketplaceOrders(ctx context.Context, r aggregate.MarketplaceOrders) error {
	return upsert(ctx, s, tableMarketplace, []aggregate.MarketplaceOrders{r}, func(r aggregate.MarketplaceOrders) []any {
		return []any{
			r.Store, r.Date,
			money(r.DoorDashProductCosts), money(r.DoorDashTax), money(r.DoorDashOrderTotal),
			money(r.UberEatsProductCosts), money(r.UberEatsTax), money(r.UberEatsOrderTotal),
			money(r.GrubhubProductCosts), money(r.GrubhubTax), money(r.GrubhubOrderTotal),
		}
	})
}

func (s *Store) UpsertDiscountOrders(ctx context.Context, rows []aggregate.DiscountOrder) error {
	return upsert(ctx, s, tableDiscountProgram, rows, func(r aggregate.DiscountOrder) []any {
		return []any{
			r.Store, r.Date, r.OrderID,
			r.PayType, money(r.OriginalSubtotal), money(r.ModifiedSubtotal), r.PromoCode,
		}
	})
}

func (s *Store) UpsertFinanceData(ctx context.Context, r aggregate.FinanceData) error {
	return upsert(ctx, s, tableFinanceData, []aggregate.FinanceData{r}, func(r aggregate.FinanceData) []any {
		return []any{
			r.Store, r.BusinessDate,
			money(r.PizzaCarryout), money(r.HNRCarryout), money(r.BreadCarryout),
			money(r.WingsCarryout), money(r.BeveragesCarryout), money(r.OtherFoodsCarryout),
			money(r.SideItemsCarryout), money(r.PizzaDelivery), money(r.HNRDelivery),
			money(r.BreadDelivery), money(r.WingsDelivery), money(r.BeveragesDelivery),
			money(r.OtherFoodsDelivery), money(r.SideItemsDelivery), money(r.DeliveryCharges),
			money(r.TotalNetSales),
			r.CustomerCount, money(r.GiftCardNonRoyalty), money(r.TotalNonRoyaltySales),
			money(r.TotalNonDeliveryTips),
			money(r.SalesTaxFoodBeverage), money(r.SalesTaxDelivery), money(r.TotalSalesTaxQuantity),
			r.DeliveryQuantity, money(r.DeliveryFee), money(r.DeliveryServiceFee),
			money(r.DeliverySmallOrderFee), money(r.DeliveryLateToPortalFee),
			money(r.TotalNativeAppDeliveryFees), money(r.DeliveryTips),
			r.DoorDashQuantity, money(r.DoorDashOrderTotal),
			r.GrubhubQuantity, money(r.GrubhubOrderTotal),
			r.UberEatsQuantity, money(r.UberEatsOrderTotal),
			r.OnlineMobileOrderQuantity, r.OnlineOrderQuantity,
			r.OnlinePayInStore, r.AgentPrePaid, r.AgentPayInStore,
			money(r.PrePaidCashOrders), money(r.PrePaidNonCashOrders), money(r.PrePaidSales),
			money(r.PrepaidDeliveryTips), money(r.PrepaidInStoreTips),
			money(r.MarketplaceNonCash), money(r.AMEX), money(r.TotalNonCashPayments),
			money(r.CreditCardPayments), money(r.DebitPayments), money(r.EPayPayments),
			money(r.NonCashPayments), money(r.CashSales), money(r.CashDropTotal),
			money(r.OverShort), money(r.Payouts),
		}
	})
}

func (s *Store) UpsertFinalSummary(ctx context.Context, r aggregate.FinalSummary) error {
	return upsert(ctx, s, tableFinalSummary, []aggregate.FinalSummary{r}, func(r aggregate.FinalSummary) []any {
		return []any{
			r.Store, r.BusinessDate,
			money(r.TotalSales), r.ModifiedOrderQty, r.RefundedOrderQty,
			r.CustomerCount,
			money(r.PhoneSales), money(r.CallCenterSales), money(r.DriveThruSales),
			money(r.WebsiteSales), money(r.MobileSales), money(r.DoorDashSales),
			money(r.GrubhubSales), money(r.UberEatsSales), money(r.DeliverySales),
			money(r.DigitalSalesPercent), r.PortalTransactions, r.PutIntoPortal,
			money(r.PortalUsedPercent), r.PutInPortalOnTime, money(r.InPortalOnTimePercent),
			money(r.DeliveryTips), money(r.PrepaidDeliveryTips), money(r.InStoreTipAmount),
			money(r.PrepaidInStoreTipAmount), money(r.TotalTips),
			money(r.OverShort), money(r.CashSales), money(r.TotalWasteCost),
		}
	})
}

func (s *Store) UpsertHourlySales(ctx context.Context, rows []aggregate.HourlySales) error {
	return upsert(ctx, s, tableHourlySales, rows, func(r aggregate.HourlySales) []any {
		return []any{
			r.Store, r.BusinessDate, r.Hour,
			money(r.TotalSales), money(r.PhoneSales), money(r.CallCenterSales),
			money(r.DriveThruSales), money(r.WebsiteSales), money(r.MobileSales),
			r.OrderCount,
		}
	})
}

var _ aggregate.Sink = (*Store)(nil)
