package store

import (
	"context"

	"github.com/allaspectsdev/storepulse/internal/feed"
)

// The methods below make *Store a feed.Sink. Each call is one transaction.

func (s *Store) UpsertCashManagement(ctx context.Context, rows []feed.CashManagement) error {
	return upsert(ctx, s, tableCashManagement, rows, func(r feed.CashManagement) []any {
		return []any{
			r.Store, r.BusinessDate, keyStamp(r.CreateDatetime), r.Till, r.CheckType,
			stamp(r.VerifiedDatetime), money(r.SystemTotals), money(r.Verified), money(r.Variance),
			r.CreatedBy, r.VerifiedBy,
		}
	})
}

func (s *Store) UpsertFinancialView(ctx context.Context, rows []feed.FinancialView) error {
	return upsert(ctx, s, tableFinancialViews, rows, func(r feed.FinancialView) []any {
		return []any{r.Store, r.BusinessDate, r.SubAccount, r.Area, money(r.Amount)}
	})
}

func (s *Store) UpsertSummaryItems(ctx context.Context, rows []feed.SummaryItem) error {
	return upsert(ctx, s, tableSummaryItems, rows, func(r feed.SummaryItem) []any {
		return []any{
			r.Store, r.BusinessDate, r.MenuItemName, r.ItemID,
			r.MenuItemAccount, r.ItemQuantity, money(r.RoyaltyObligation),
			money(r.TaxableAmount), money(r.NonTaxableAmount), money(r.TaxExemptAmount),
			money(r.NonRoyaltyAmount), money(r.TaxIncludedAmount),
		}
	})
}

func (s *Store) UpsertSummarySales(ctx context.Context, rows []feed.SummarySale) error {
	return upsert(ctx, s, tableSummarySales, rows, func(r feed.SummarySale) []any {
		return []any{
			r.Store, r.BusinessDate,
			money(r.RoyaltyObligation), r.CustomerCount, money(r.TaxableAmount),
			money(r.NonTaxableAmount), money(r.TaxExemptAmount), money(r.NonRoyaltyAmount),
			money(r.RefundAmount), money(r.SalesTax), money(r.GrossSales), money(r.OccupationalTax),
			money(r.DeliveryTip), money(r.DeliveryFee), money(r.DeliveryServiceFee),
			money(r.DeliverySmallOrderFee), money(r.ModifiedOrderAmount), money(r.StoreTipAmount),
			money(r.PrepaidCashOrders), money(r.PrepaidNonCashOrders), money(r.PrepaidSales),
			money(r.PrepaidDeliveryTip), money(r.PrepaidInStoreTipAmount), money(r.OverShort),
			money(r.PreviousDayRefunds), money(r.SAF), r.ManagerNotes,
		}
	})
}

func (s *Store) UpsertSummaryTransactions(ctx context.Context, rows []feed.SummaryTransaction) error {
	return upsert(ctx, s, tableSummaryTransactions, rows, func(r feed.SummaryTransaction) []any {
		return []any{
			r.Store, r.BusinessDate, r.PaymentMethod, r.SubPaymentMethod,
			money(r.TotalAmount), r.SAFQty, money(r.SAFTotal),
		}
	})
}

func (s *Store) UpsertDetailOrders(ctx context.Context, rows []feed.DetailOrder) error {
	return upsert(ctx, s, tableDetailOrders, rows, func(r feed.DetailOrder) []any {
		return []any{
			r.Store, r.BusinessDate, r.OrderID,
			stamp(r.DateTimePlaced), stamp(r.DateTimeFulfilled), money(r.RoyaltyObligation),
			r.Quantity, r.CustomerCount, money(r.TaxableAmount),
			money(r.NonTaxableAmount), money(r.TaxExemptAmount), money(r.NonRoyaltyAmount),
			money(r.SalesTax), r.Employee, money(r.GrossSales), money(r.OccupationalTax),
			r.OverrideApprovalEmployee, r.OrderPlacedMethod, money(r.DeliveryTip),
			money(r.DeliveryTipTax), r.OrderFulfilledMethod, money(r.DeliveryFee),
			money(r.ModifiedOrderAmount), money(r.DeliveryFeeTax), r.ModificationReason,
			r.PaymentMethods, money(r.DeliveryServiceFee), money(r.DeliveryServiceFeeTax),
			r.Refunded, money(r.DeliverySmallOrderFee), money(r.DeliverySmallOrderFeeTax),
			r.TransactionType, money(r.StoreTipAmount), stamp(r.PromiseDate),
			r.TaxExemptionID, r.TaxExemptionEntityName, r.UserID,
			r.HNROrder, r.BrokenPromise, r.PortalEligible, r.PortalUsed,
			r.PutIntoPortalBeforePromiseTime, r.PortalCompartmentsUsed,
			stamp(r.TimeLoadedIntoPortal),
		}
	})
}

func (s *Store) UpsertOrderLines(ctx context.Context, rows []feed.OrderLine) error {
	return upsert(ctx, s, tableOrderLines, rows, func(r feed.OrderLine) []any {
		return []any{
			r.Store, r.BusinessDate, r.OrderID, r.ItemID,
			stamp(r.DateTimePlaced), stamp(r.DateTimeFulfilled), money(r.NetAmount),
			r.Quantity, r.RoyaltyItem, r.TaxableItem, r.MenuItemName,
			r.MenuItemAccount, r.BundleName, r.Employee,
			r.OverrideApprovalEmployee, r.OrderPlacedMethod,
			r.OrderFulfilledMethod, money(r.ModifiedOrderAmount),
			r.ModificationReason, r.PaymentMethods, r.Refunded,
			money(r.TaxIncludedAmount),
		}
	})
}

func (s *Store) UpsertWaste(ctx context.Context, rows []feed.Waste) error {
	return upsert(ctx, s, tableWaste, rows, func(r feed.Waste) []any {
		return []any{
			r.Store, r.BusinessDate, r.CVItemID, keyStamp(r.WasteDateTime),
			r.MenuItemName, flagInt(r.Expired), stamp(r.ProduceDateTime),
			r.WasteReason, r.CVOrderID, r.WasteType,
			money(r.ItemCost), money(r.Quantity),
		}
	})
}

var _ feed.Sink = (*Store)(nil)
