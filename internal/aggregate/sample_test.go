package aggregate_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/allaspectsdev/storepulse/internal/aggregate"
	"github.com/allaspectsdev/storepulse/internal/feed"
	"github.com/allaspectsdev/storepulse/internal/testutil"
)

func loadSample(t *testing.T) *feed.Batch {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteBundle(t, dir)
	b, err := feed.NewNormalizer(0).Load(context.Background(), dir, testutil.SampleDate)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return b
}

func storeInput(b *feed.Batch, store string) aggregate.StoreInput {
	var in aggregate.StoreInput
	for _, o := range b.DetailOrders {
		if o.Store == store {
			in.Orders = append(in.Orders, o)
		}
	}
	for _, l := range b.OrderLines {
		if l.Store == store {
			in.Lines = append(in.Lines, l)
		}
	}
	for _, f := range b.FinancialView {
		if f.Store == store {
			in.Finance = append(in.Finance, f)
		}
	}
	for _, w := range b.Waste {
		if w.Store == store {
			in.Waste = append(in.Waste, w)
		}
	}
	return in
}

func eq(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestComputeStore_SampleBundle(t *testing.T) {
	b := loadSample(t)
	res := aggregate.ComputeStore(testutil.SampleDate, "03795", storeInput(b, "03795"), aggregate.Options{})

	if len(res.Channel) != 24 {
		t.Errorf("channel rows = %d, want 24", len(res.Channel))
	}
	if res.Bread.ClassicOrder != 1 || res.Bread.ClassicWithBread != 1 ||
		res.Bread.OtherPizzaOrder != 1 || res.Bread.OtherPizzaWithBread != 1 {
		t.Errorf("bread = %+v", res.Bread)
	}
	if res.LateOrders != 1 {
		t.Errorf("late orders = %d, want 1", res.LateOrders)
	}

	d := res.Delivery
	if d.OrdersCount != 1 {
		t.Errorf("delivery orders = %d, want 1", d.OrdersCount)
	}
	eq(t, "product_cost", d.ProductCost, "16")
	eq(t, "tax", d.Tax, "1.28")
	eq(t, "order_total", d.OrderTotal, "25.60")
	eq(t, "late charge", d.DeliveryLateCharge, "0.50")

	eq(t, "doordash product", res.Marketplace.DoorDashProductCosts, "15")
	eq(t, "doordash tax", res.Marketplace.DoorDashTax, "1.20")
	eq(t, "doordash total", res.Marketplace.DoorDashOrderTotal, "16.20")

	if len(res.Discounts) != 1 || res.Discounts[0].OrderID != "1002" || res.Discounts[0].PromoCode != "SAVE5" {
		t.Errorf("discounts = %+v", res.Discounts)
	}

	f := res.Finance
	eq(t, "net sales", f.TotalNetSales, "155")
	eq(t, "sales tax delivery", f.SalesTaxDelivery, "2.80")
	eq(t, "sales tax food", f.SalesTaxFoodBeverage, "6.20")
	eq(t, "non-delivery tips", f.TotalNonDeliveryTips, "3")
	eq(t, "delivery tips", f.DeliveryTips, "6")
	eq(t, "non-cash", f.NonCashPayments, "50")
	eq(t, "cash drop", f.CashDropTotal, "39")
	eq(t, "over short", f.OverShort, "-1")
	if f.CustomerCount != 3 || f.DeliveryQuantity != 1 || f.DoorDashQuantity != 1 || f.OnlineOrderQuantity != 1 {
		t.Errorf("finance counts = customers %d delivery %d doordash %d online %d",
			f.CustomerCount, f.DeliveryQuantity, f.DoorDashQuantity, f.OnlineOrderQuantity)
	}

	s := res.Summary
	eq(t, "total sales", s.TotalSales, "45")
	eq(t, "delivery sales", s.DeliverySales, "35")
	eq(t, "digital percent", s.DigitalSalesPercent, "0.78")
	eq(t, "portal used percent", s.PortalUsedPercent, "1")
	eq(t, "on time percent", s.InPortalOnTimePercent, "0.5")
	eq(t, "total tips", s.TotalTips, "9")
	eq(t, "waste cost", s.TotalWasteCost, "4")
	if s.ModifiedOrderQty != 1 || s.RefundedOrderQty != 1 || s.PortalTransactions != 2 {
		t.Errorf("summary counts = modified %d refunded %d portal %d",
			s.ModifiedOrderQty, s.RefundedOrderQty, s.PortalTransactions)
	}

	if len(res.Hourly) != 2 || res.Hourly[0].Hour != 11 || res.Hourly[1].Hour != 12 {
		t.Fatalf("hourly = %+v", res.Hourly)
	}
	eq(t, "noon sales", res.Hourly[1].TotalSales, "35")
}

func TestComputeStore_BoundaryNotLate(t *testing.T) {
	b := loadSample(t)
	res := aggregate.ComputeStore(testutil.SampleDate, "03796", storeInput(b, "03796"), aggregate.Options{})
	if res.LateOrders != 0 {
		t.Errorf("order loaded exactly at the grace boundary counted late")
	}
	if len(res.Channel) != 10 {
		t.Errorf("channel rows = %d, want 10", len(res.Channel))
	}
	if len(res.Hourly) != 1 || res.Hourly[0].Hour != 18 {
		t.Errorf("hourly = %+v", res.Hourly)
	}
}

func TestEngineRun_SampleIntoStore(t *testing.T) {
	b := loadSample(t)
	st := testutil.NewTestStore(t)

	sum, err := aggregate.NewEngine(st, aggregate.Options{}).Run(context.Background(), b, testutil.SampleDate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Stores != 3 || sum.ChannelRows != 34 || sum.DiscountRows != 1 || sum.HourlyRows != 3 {
		t.Errorf("summary = %+v", sum)
	}

	if _, err := aggregate.NewEngine(st, aggregate.Options{}).Run(context.Background(), b, testutil.SampleDate); err != nil {
		t.Fatalf("re-run: %v", err)
	}
	n, err := st.CountRows(context.Background(), "channel_data")
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if n != 34 {
		t.Errorf("channel_data rows after re-run = %d, want 34", n)
	}
}
