package aggregate

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allaspectsdev/storepulse/internal/feed"
)

// Order placement and fulfillment methods as the POS reports them.
const (
	placedPhone     = "Phone"
	placedRegister  = "Register"
	placedDriveThru = "Drive Thru"
	placedWebsite   = "Website"
	placedMobile    = "Mobile"
	placedAgent     = "SoundHoundAgent"
	placedDoorDash  = "DoorDash"
	placedUberEats  = "UberEats"
	placedGrubhub   = "Grubhub"
)

const (
	fulfilledRegister  = "Register"
	fulfilledDriveThru = "Drive-Thru"
	fulfilledDelivery  = "Delivery"
)

const breadItem = "Crazy Bread"

var (
	classicPizzas   = []string{"Classic Pepperoni", "Classic Cheese"}
	carryoutPlaced  = []string{placedPhone, placedRegister, placedDriveThru}
	inStoreFulfill  = []string{fulfilledRegister, fulfilledDriveThru}
	onlinePlaced    = []string{placedMobile, placedWebsite}
	nonPizzaItemIDs = []string{
		"-1", "6", "7", "8", "9", "101001", "101002", "101288",
		"103044", "202901", "101289", "204100", "204200",
	}
)

type orderPred func(feed.DetailOrder) bool

func placedIn(methods ...string) orderPred {
	return func(o feed.DetailOrder) bool { return slices.Contains(methods, o.OrderPlacedMethod) }
}

func fulfilledIn(methods ...string) orderPred {
	return func(o feed.DetailOrder) bool { return slices.Contains(methods, o.OrderFulfilledMethod) }
}

func nonZeroRoyalty(o feed.DetailOrder) bool { return !o.RoyaltyObligation.IsZero() }

func all(preds ...orderPred) orderPred {
	return func(o feed.DetailOrder) bool {
		for _, p := range preds {
			if !p(o) {
				return false
			}
		}
		return true
	}
}

func filter(orders []feed.DetailOrder, keep orderPred) []feed.DetailOrder {
	var out []feed.DetailOrder
	for _, o := range orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func countWhere(orders []feed.DetailOrder, keep orderPred) int64 {
	var n int64
	for _, o := range orders {
		if keep(o) {
			n++
		}
	}
	return n
}

func sumBy[T any](rows []T, value func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(value(r))
	}
	return total
}

func royalty(o feed.DetailOrder) decimal.Decimal { return o.RoyaltyObligation }

// ratio returns num/den rounded to two places, or zero when den is zero.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return num.Div(den).Round(2)
}

func breadBoost(date, store string, lines []feed.OrderLine) BreadBoost {
	inChannel := func(l feed.OrderLine) bool {
		return slices.Contains(inStoreFulfill, l.OrderFulfilledMethod) &&
			slices.Contains(carryoutPlaced, l.OrderPlacedMethod)
	}
	withBread := func(orders map[string]struct{}) int64 {
		hits := map[string]struct{}{}
		for _, l := range lines {
			if l.MenuItemName != breadItem {
				continue
			}
			if _, ok := orders[l.OrderID]; ok {
				hits[l.OrderID] = struct{}{}
			}
		}
		return int64(len(hits))
	}

	classic := map[string]struct{}{}
	other := map[string]struct{}{}
	for _, l := range lines {
		if !inChannel(l) {
			continue
		}
		if slices.Contains(classicPizzas, l.MenuItemName) {
			classic[l.OrderID] = struct{}{}
		}
		if !slices.Contains(nonPizzaItemIDs, l.ItemID) {
			other[l.OrderID] = struct{}{}
		}
	}

	return BreadBoost{
		Store:               store,
		Date:                date,
		ClassicOrder:        int64(len(classic)),
		ClassicWithBread:    withBread(classic),
		OtherPizzaOrder:     int64(len(other)),
		OtherPizzaWithBread: withBread(other),
	}
}

// lateToPortal counts delivery orders with a delivery fee that were loaded
// into the portal more than grace after their promise time. Orders with an
// unknown promise or load time are never late.
func lateToPortal(delivery []feed.DetailOrder, grace time.Duration) int64 {
	var n int64
	for _, o := range delivery {
		if o.DeliveryFee.IsZero() || o.TimeLoadedIntoPortal == nil || o.PromiseDate == nil {
			continue
		}
		if o.TimeLoadedIntoPortal.After(o.PromiseDate.Add(grace)) {
			n++
		}
	}
	return n
}

func deliverySummary(date, store string, orders []feed.DetailOrder, lateFee decimal.Decimal) DeliverySummary {
	d := filter(orders, all(placedIn(onlinePlaced...), fulfilledIn(fulfilledDelivery)))

	sum := func(f func(feed.DetailOrder) decimal.Decimal) decimal.Decimal { return sumBy(d, f) }
	ro := sum(royalty)
	fee := sum(func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryFee })
	feeTax := sum(func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryFeeTax })
	service := sum(func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryServiceFee })
	serviceTax := sum(func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryServiceFeeTax })
	small := sum(func(o feed.DetailOrder) decimal.Decimal { return o.DeliverySmallOrderFee })
	smallTax := sum(func(o feed.DetailOrder) decimal.Decimal { return o.DeliverySmallOrderFeeTax })
	tip := sum(func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryTip })
	totalTaxes := sum(func(o feed.DetailOrder) decimal.Decimal { return o.SalesTax })

	return DeliverySummary{
		Store:                 store,
		Date:                  date,
		OrdersCount:           int64(len(d)),
		ProductCost:           ro.Sub(service.Add(fee).Add(small)),
		Tax:                   totalTaxes.Sub(serviceTax).Sub(feeTax).Sub(smallTax),
		OccupationalTax:       sum(func(o feed.DetailOrder) decimal.Decimal { return o.OccupationalTax }),
		DeliveryCharges:       fee,
		DeliveryChargesTaxes:  feeTax,
		ServiceCharges:        service,
		ServiceChargesTaxes:   serviceTax,
		SmallOrderCharge:      small,
		SmallOrderChargeTaxes: smallTax,
		DeliveryLateCharge:    lateFee,
		Tip:                   tip,
		TipTax:                sum(func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryTipTax }),
		TotalTaxes:            totalTaxes,
		OrderTotal:            ro.Add(totalTaxes).Add(tip),
	}
}

func marketplace(date, store string, orders []feed.DetailOrder) MarketplaceOrders {
	m := MarketplaceOrders{Store: store, Date: date}
	for _, o := range orders {
		switch o.OrderPlacedMethod {
		case placedDoorDash:
			m.DoorDashProductCosts = m.DoorDashProductCosts.Add(o.RoyaltyObligation)
			m.DoorDashTax = m.DoorDashTax.Add(o.SalesTax)
			m.DoorDashOrderTotal = m.DoorDashOrderTotal.Add(o.GrossSales)
		case placedUberEats:
			m.UberEatsProductCosts = m.UberEatsProductCosts.Add(o.RoyaltyObligation)
			m.UberEatsTax = m.UberEatsTax.Add(o.SalesTax)
			m.UberEatsOrderTotal = m.UberEatsOrderTotal.Add(o.GrossSales)
		case placedGrubhub:
			m.GrubhubProductCosts = m.GrubhubProductCosts.Add(o.RoyaltyObligation)
			m.GrubhubTax = m.GrubhubTax.Add(o.SalesTax)
			m.GrubhubOrderTotal = m.GrubhubOrderTotal.Add(o.GrossSales)
		}
	}
	return m
}

// promoCode is the trimmed text after the first colon of a modification
// reason, or "" when there is no colon.
func promoCode(reason string) string {
	_, after, ok := strings.Cut(reason, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(after)
}

func discountLedger(date, store string, orders []feed.DetailOrder) []DiscountOrder {
	var out []DiscountOrder
	for _, o := range orders {
		if o.Employee != "" || o.ModificationReason == "" {
			continue
		}
		out = append(out, DiscountOrder{
			Store:            store,
			Date:             date,
			OrderID:          o.OrderID,
			PayType:          o.PaymentMethods,
			OriginalSubtotal: decimal.Zero,
			ModifiedSubtotal: o.RoyaltyObligation,
			PromoCode:        promoCode(o.ModificationReason),
		})
	}
	return out
}

// hourlySales groups orders by promise hour. Orders without a promise time
// are skipped and counted.
func hourlySales(date, store string, orders []feed.DetailOrder) ([]HourlySales, int) {
	byHour := map[int]*HourlySales{}
	skipped := 0
	for _, o := range orders {
		if o.PromiseDate == nil {
			skipped++
			continue
		}
		h := o.PromiseDate.Hour()
		row, ok := byHour[h]
		if !ok {
			row = &HourlySales{Store: store, BusinessDate: date, Hour: h}
			byHour[h] = row
		}
		ro := o.RoyaltyObligation
		row.TotalSales = row.TotalSales.Add(ro)
		row.OrderCount++
		switch o.OrderPlacedMethod {
		case placedPhone:
			row.PhoneSales = row.PhoneSales.Add(ro)
		case placedAgent:
			row.CallCenterSales = row.CallCenterSales.Add(ro)
		case placedDriveThru:
			row.DriveThruSales = row.DriveThruSales.Add(ro)
		case placedWebsite:
			row.WebsiteSales = row.WebsiteSales.Add(ro)
		case placedMobile:
			row.MobileSales = row.MobileSales.Add(ro)
		}
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	out := make([]HourlySales, 0, len(hours))
	for _, h := range hours {
		out = append(out, *byHour[h])
	}
	return out, skipped
}

func wasteCost(waste []feed.Waste) decimal.Decimal {
	return sumBy(waste, func(w feed.Waste) decimal.Decimal { return w.ItemCost.Mul(w.Quantity) })
}
