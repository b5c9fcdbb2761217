package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/allaspectsdev/storepulse/internal/feed"
)

// MetricKind selects how a channel metric reduces a group of orders.
type MetricKind int

const (
	Sum MetricKind = iota
	DistinctCount
)

// ChannelMetric is one row template of the channel matrix. Value extracts
// the summed amount; DistinctCount metrics count distinct order ids and
// ignore Value.
type ChannelMetric struct {
	Category    string
	SubCategory string
	Column      string
	Kind        MetricKind
	Value       func(o feed.DetailOrder) decimal.Decimal
}

// ChannelMetrics is evaluated in order for every (placed, fulfilled) group.
var ChannelMetrics = []ChannelMetric{
	{"Sales", "-", "royalty_obligation", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.RoyaltyObligation }},
	{"Gross_Sales", "-", "gross_sales", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.GrossSales }},
	{"Order_Count", "-", "order_id", DistinctCount, nil},

	{"Tips", "DeliveryTip", "delivery_tip", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryTip }},
	{"Tips", "DeliveryTipTax", "delivery_tip_tax", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryTipTax }},
	{"Tips", "StoreTipAmount", "store_tip_amount", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.StoreTipAmount }},

	{"Tax", "TaxableAmount", "taxable_amount", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.TaxableAmount }},
	{"Tax", "NonTaxableAmount", "non_taxable_amount", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.NonTaxableAmount }},
	{"Tax", "TaxExemptAmount", "tax_exempt_amount", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.TaxExemptAmount }},
	{"Tax", "SalesTax", "sales_tax", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.SalesTax }},
	{"Tax", "OccupationalTax", "occupational_tax", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.OccupationalTax }},

	{"Fee", "DeliveryFee", "delivery_fee", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryFee }},
	{"Fee", "DeliveryFeeTax", "delivery_fee_tax", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryFeeTax }},
	{"Fee", "DeliveryServiceFee", "delivery_service_fee", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryServiceFee }},
	{"Fee", "DeliveryServiceFeeTax", "delivery_service_fee_tax", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.DeliveryServiceFeeTax }},
	{"Fee", "DeliverySmallOrderFee", "delivery_small_order_fee", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.DeliverySmallOrderFee }},
	{"Fee", "DeliverySmallOrderFeeTax", "delivery_small_order_fee_tax", Sum, func(o feed.DetailOrder) decimal.Decimal { return o.DeliverySmallOrderFeeTax }},

	{"HNR", "HNROrdersCount", "hnr_order", Sum, func(o feed.DetailOrder) decimal.Decimal { return feed.FlagAmount(o.HNROrder) }},

	{"portal", "PutInPortalOrdersCount", "portal_used", Sum, func(o feed.DetailOrder) decimal.Decimal { return feed.FlagAmount(o.PortalUsed) }},
	{"portal", "PutInPortalOnTimeOrdersCount", "put_into_portal_before_promise_time", Sum, func(o feed.DetailOrder) decimal.Decimal {
		return feed.FlagAmount(o.PutIntoPortalBeforePromiseTime)
	}},
}

type channelKey struct {
	placed    string
	fulfilled string
}

// channelMatrix evaluates metrics over orders grouped by channel pair.
// Groups are visited in sorted order and zero amounts are never emitted.
func channelMatrix(date, store string, orders []feed.DetailOrder, metrics []ChannelMetric) []ChannelRow {
	groups := map[channelKey][]feed.DetailOrder{}
	for _, o := range orders {
		k := channelKey{o.OrderPlacedMethod, o.OrderFulfilledMethod}
		groups[k] = append(groups[k], o)
	}
	keys := make([]channelKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].placed != keys[j].placed {
			return keys[i].placed < keys[j].placed
		}
		return keys[i].fulfilled < keys[j].fulfilled
	})

	var rows []ChannelRow
	for _, k := range keys {
		group := groups[k]
		for _, m := range metrics {
			var amount decimal.Decimal
			switch m.Kind {
			case DistinctCount:
				amount = decimal.NewFromInt(int64(len(distinctOrderIDs(group))))
			default:
				amount = sumBy(group, m.Value)
			}
			if amount.IsZero() {
				continue
			}
			rows = append(rows, ChannelRow{
				Store:           store,
				Date:            date,
				Category:        m.Category,
				SubCategory:     m.SubCategory,
				PlacedMethod:    k.placed,
				FulfilledMethod: k.fulfilled,
				Amount:          amount,
			})
		}
	}
	return rows
}

func distinctOrderIDs(orders []feed.DetailOrder) map[string]struct{} {
	ids := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		ids[o.OrderID] = struct{}{}
	}
	return ids
}
