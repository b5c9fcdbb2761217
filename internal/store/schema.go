package store

import (
	"fmt"
	"strings"
)

type colType string

const (
	colText colType = "TEXT"
	colReal colType = "REAL"
	colInt  colType = "INTEGER"
)

type column struct {
	name string
	typ  colType
}

func text(name string) column  { return column{name, colText} }
func num(name string) column   { return column{name, colReal} }
func count(name string) column { return column{name, colInt} }

// tableDef describes a table written by upsert. Key columns form the
// natural key; every table also carries id, created_at and updated_at.
type tableDef struct {
	name string
	key  []column
	cols []column
}

// columns returns key columns followed by value columns.
func (t *tableDef) columns() []column {
	out := make([]column, 0, len(t.key)+len(t.cols))
	out = append(out, t.key...)
	return append(out, t.cols...)
}

func (t *tableDef) ddl() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n    id INTEGER PRIMARY KEY AUTOINCREMENT,\n", t.name)
	for _, c := range t.key {
		fmt.Fprintf(&b, "    %s %s NOT NULL,\n", c.name, c.typ)
	}
	for _, c := range t.cols {
		def := "0"
		if c.typ == colText {
			def = "''"
		}
		// Timestamps are nullable: unknown stays NULL.
		if c.typ == colText && isStampColumn(c.name) {
			fmt.Fprintf(&b, "    %s TEXT,\n", c.name)
			continue
		}
		fmt.Fprintf(&b, "    %s %s NOT NULL DEFAULT %s,\n", c.name, c.typ, def)
	}
	b.WriteString("    created_at TEXT NOT NULL,\n    updated_at TEXT NOT NULL,\n")
	fmt.Fprintf(&b, "    UNIQUE (%s)\n);\n", strings.Join(names(t.key), ", "))
	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_date_store ON %s(business_date, franchise_store);\n", t.name, t.name)
	return b.String()
}

func isStampColumn(name string) bool {
	return strings.HasSuffix(name, "_datetime") || strings.HasSuffix(name, "_date_time") ||
		name == "date_time_placed" || name == "date_time_fulfilled" ||
		name == "promise_date" || name == "time_loaded_into_portal"
}

func names(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

var storeDate = []column{text("franchise_store"), text("business_date")}

func withStoreDate(extra ...column) []column {
	return append(append([]column{}, storeDate...), extra...)
}

// Raw feed tables, keyed as the POS export identifies a row.
var (
	tableCashManagement = &tableDef{
		name: "cash_management",
		key:  withStoreDate(text("create_datetime"), text("till"), text("check_type")),
		cols: []column{
			text("verified_datetime"), num("system_totals"), num("verified"), num("variance"),
			text("created_by"), text("verified_by"),
		},
	}
	tableFinancialViews = &tableDef{
		name: "financial_views",
		key:  withStoreDate(text("sub_account"), text("area")),
		cols: []column{num("amount")},
	}
	tableSummaryItems = &tableDef{
		name: "summary_items",
		key:  withStoreDate(text("menu_item_name"), text("item_id")),
		cols: []column{
			text("menu_item_account"), count("item_quantity"), num("royalty_obligation"),
			num("taxable_amount"), num("non_taxable_amount"), num("tax_exempt_amount"),
			num("non_royalty_amount"), num("tax_included_amount"),
		},
	}
	tableSummarySales = &tableDef{
		name: "summary_sales",
		key:  withStoreDate(),
		cols: []column{
			num("royalty_obligation"), count("customer_count"), num("taxable_amount"),
			num("non_taxable_amount"), num("tax_exempt_amount"), num("non_royalty_amount"),
			num("refund_amount"), num("sales_tax"), num("gross_sales"), num("occupational_tax"),
			num("delivery_tip"), num("delivery_fee"), num("delivery_service_fee"),
			num("delivery_small_order_fee"), num("modified_order_amount"), num("store_tip_amount"),
			num("prepaid_cash_orders"), num("prepaid_non_cash_orders"), num("prepaid_sales"),
			num("prepaid_delivery_tip"), num("prepaid_in_store_tip_amount"), num("over_short"),
			num("previous_day_refunds"), num("saf"), text("manager_notes"),
		},
	}
	tableSummaryTransactions = &tableDef{
		name: "summary_transactions",
		key:  withStoreDate(text("payment_method"), text("sub_payment_method")),
		cols: []column{num("total_amount"), count("saf_qty"), num("saf_total")},
	}
	tableDetailOrders = &tableDef{
		name: "detail_orders",
		key:  withStoreDate(text("order_id")),
		cols: []column{
			text("date_time_placed"), text("date_time_fulfilled"), num("royalty_obligation"),
			count("quantity"), count("customer_count"), num("taxable_amount"),
			num("non_taxable_amount"), num("tax_exempt_amount"), num("non_royalty_amount"),
			num("sales_tax"), text("employee"), num("gross_sales"), num("occupational_tax"),
			text("override_approval_employee"), text("order_placed_method"), num("delivery_tip"),
			num("delivery_tip_tax"), text("order_fulfilled_method"), num("delivery_fee"),
			num("modified_order_amount"), num("delivery_fee_tax"), text("modification_reason"),
			text("payment_methods"), num("delivery_service_fee"), num("delivery_service_fee_tax"),
			text("refunded"), num("delivery_small_order_fee"), num("delivery_small_order_fee_tax"),
			text("transaction_type"), num("store_tip_amount"), text("promise_date"),
			text("tax_exemption_id"), text("tax_exemption_entity_name"), text("user_id"),
			text("hnr_order"), text("broken_promise"), text("portal_eligible"), text("portal_used"),
			text("put_into_portal_before_promise_time"), text("portal_compartments_used"),
			text("time_loaded_into_portal"),
		},
	}
	tableOrderLines = &tableDef{
		name: "order_lines",
		key:  withStoreDate(text("order_id"), text("item_id")),
		cols: []column{
			text("date_time_placed"), text("date_time_fulfilled"), num("net_amount"),
			count("quantity"), text("royalty_item"), text("taxable_item"), text("menu_item_name"),
			text("menu_item_account"), text("bundle_name"), text("employee"),
			text("override_approval_employee"), text("order_placed_method"),
			text("order_fulfilled_method"), num("modified_order_amount"),
			text("modification_reason"), text("payment_methods"), text("refunded"),
			num("tax_included_amount"),
		},
	}
	tableWaste = &tableDef{
		name: "waste",
		key:  withStoreDate(text("cv_item_id"), text("waste_date_time")),
		cols: []column{
			text("menu_item_name"), count("expired"), text("produce_date_time"),
			text("waste_reason"), text("cv_order_id"), text("waste_type"),
			num("item_cost"), num("quantity"),
		},
	}
)

// Aggregate tables.
var (
	tableChannelData = &tableDef{
		name: "channel_data",
		key: withStoreDate(text("category"), text("sub_category"),
			text("order_placed_method"), text("order_fulfilled_method")),
		cols: []column{num("amount")},
	}
	tableBreadBoost = &tableDef{
		name: "bread_boost",
		key:  withStoreDate(),
		cols: []column{
			count("classic_order"), count("classic_with_bread"),
			count("other_pizza_order"), count("other_pizza_with_bread"),
		},
	}
	tableDeliverySummary = &tableDef{
		name: "delivery_order_summary",
		key:  withStoreDate(),
		cols: []column{
			count("orders_count"), num("product_cost"), num("tax"), num("occupational_tax"),
			num("delivery_charges"), num("delivery_charges_taxes"), num("service_charges"),
			num("service_charges_taxes"), num("small_order_charge"), num("small_order_charge_taxes"),
			num("delivery_late_charge"), num("tip"), num("tip_tax"), num("total_taxes"),
			num("order_total"),
		},
	}
	tableMarketplace = &tableDef{
		name: "third_party_marketplace_orders",
		key:  withStoreDate(),
		cols: []column{
			num("doordash_product_costs_meal"), num("doordash_tax"), num("doordash_order_total"),
			num("ubereats_product_costs_meal"), num("ubereats_tax"), num("ubereats_order_total"),
			num("grubhub_product_costs_meal"), num("grubhub_tax"), num("grubhub_order_total"),
		},
	}
	tableDiscountProgram = &tableDef{
		name: "online_discount_program",
		key:  withStoreDate(text("order_id")),
		cols: []column{
			text("pay_type"), num("original_subtotal"), num("modified_subtotal"), text("promo_code"),
		},
	}
	tableFinanceData = &tableDef{
		name: "finance_data",
		key:  withStoreDate(),
		cols: []column{
			num("pizza_carryout"), num("hnr_carryout"), num("bread_carryout"),
			num("wings_carryout"), num("beverages_carryout"), num("other_foods_carryout"),
			num("side_items_carryout"), num("pizza_delivery"), num("hnr_delivery"),
			num("bread_delivery"), num("wings_delivery"), num("beverages_delivery"),
			num("other_foods_delivery"), num("side_items_delivery"), num("delivery_charges"),
			num("total_net_sales"),
			count("customer_count"), num("gift_card_non_royalty"), num("total_non_royalty_sales"),
			num("total_non_delivery_tips"),
			num("sales_tax_food_beverage"), num("sales_tax_delivery"), num("total_sales_tax_quantity"),
			count("delivery_quantity"), num("delivery_fee"), num("delivery_service_fee"),
			num("delivery_small_order_fee"), num("delivery_late_to_portal_fee"),
			num("total_native_app_delivery_fees"), num("delivery_tips"),
			count("doordash_quantity"), num("doordash_order_total"),
			count("grubhub_quantity"), num("grubhub_order_total"),
			count("ubereats_quantity"), num("ubereats_order_total"),
			count("online_mobile_order_quantity"), count("online_order_quantity"),
			count("online_pay_in_store"), count("agent_pre_paid"), count("agent_pay_in_store"),
			num("prepaid_cash_orders"), num("prepaid_non_cash_orders"), num("prepaid_sales"),
			num("prepaid_delivery_tips"), num("prepaid_in_store_tips"),
			num("marketplace_non_cash"), num("amex"), num("total_non_cash_payments"),
			num("credit_card_payments"), num("debit_payments"), num("epay_payments"),
			num("non_cash_payments"), num("cash_sales"), num("cash_drop_total"),
			num("over_short"), num("payouts"),
		},
	}
	tableFinalSummary = &tableDef{
		name: "final_summary",
		key:  withStoreDate(),
		cols: []column{
			num("total_sales"), count("modified_order_qty"), count("refunded_order_qty"),
			count("customer_count"),
			num("phone_sales"), num("call_center_sales"), num("drive_thru_sales"),
			num("website_sales"), num("mobile_sales"), num("doordash_sales"),
			num("grubhub_sales"), num("ubereats_sales"), num("delivery_sales"),
			num("digital_sales_percent"), count("portal_transactions"), count("put_into_portal"),
			num("portal_used_percent"), count("put_in_portal_on_time"), num("in_portal_on_time_percent"),
			num("delivery_tips"), num("prepaid_delivery_tips"), num("in_store_tip_amount"),
			num("prepaid_in_store_tip_amount"), num("total_tips"),
			num("over_short"), num("cash_sales"), num("total_waste_cost"),
		},
	}
	tableHourlySales = &tableDef{
		name: "hourly_sales",
		key:  withStoreDate(count("hour")),
		cols: []column{
			num("total_sales"), num("phone_sales"), num("call_center_sales"),
			num("drive_thru_sales"), num("website_sales"), num("mobile_sales"),
			count("order_count"),
		},
	}
)

var allTables = []*tableDef{
	tableCashManagement, tableFinancialViews, tableSummaryItems, tableSummarySales,
	tableSummaryTransactions, tableDetailOrders, tableOrderLines, tableWaste,
	tableChannelData, tableBreadBoost, tableDeliverySummary, tableMarketplace,
	tableDiscountProgram, tableFinanceData, tableFinalSummary, tableHourlySales,
}

var tablesByName = func() map[string]*tableDef {
	m := make(map[string]*tableDef, len(allTables))
	for _, t := range allTables {
		m[t.name] = t
	}
	return m
}()

const schemaIngestRuns = `
CREATE TABLE IF NOT EXISTS ingest_runs (
    id TEXT PRIMARY KEY,
    business_date TEXT NOT NULL,
    source TEXT NOT NULL,
    status TEXT NOT NULL,
    error_kind TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL DEFAULT '',
    feed_rows INTEGER NOT NULL DEFAULT 0,
    dropped_rows INTEGER NOT NULL DEFAULT 0,
    stores INTEGER NOT NULL DEFAULT 0,
    aggregate_rows INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_date ON ingest_runs(business_date);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS migrations (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// allSchemas lists every DDL block applied by the initial migration.
var allSchemas = func() []string {
	out := []string{schemaIngestRuns}
	for _, t := range allTables {
		out = append(out, t.ddl())
	}
	return out
}()
