package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// SampleDate is the business date used by every sample feed.
const SampleDate = "2025-03-07"

// Sample feeds cover stores 03795 (orders, lines, finance, waste),
// 03796 (one mobile delivery order) and 03797 (financial view only).
const (
	sampleCashManagement = `FranchiseStore,BusinessDate,CreateDatetime,VerifiedDatetime,Till,CheckType,SystemTotals,Verified,Variance,CreatedBy,VerifiedBy
03795,2025-03-07,03/07/2025 09:00:00 AM,03/07/2025 09:05:00 AM,1,Drop,100.00,99.00,-1.00,Ann,Bob
`
	sampleFinancialView = `FranchiseStore,BusinessDate,Area,SubAccount,Amount
03795,2025-03-07,Sales,Pizza - Carryout,100.00
03795,2025-03-07,Sales,HNR - Carryout,20.00
03795,2025-03-07,Sales,Pizza - Delivery,30.00
03795,2025-03-07,Sales,Delivery-Fees,5.00
03795,2025-03-07,Tax,Sales-Tax,9.00
03795,2025-03-07,Payments,Non-Cash-Payments,80.00
03795,2025-03-07,Payments,Credit Card - AMEX,10.00
03795,2025-03-07,Payments,Marketplace - DoorDash,15.00
03795,2025-03-07,Non Royalty,Gift Card,5.00
03795,2025-03-07,Cash,Cash Drop Total,40.00
03795,2025-03-07,Cash,Over-Short-Operating,-1.00
03795,2025-03-07,Tips,Delivery-Tips,4.00
03795,2025-03-07,Tips,Prepaid-Delivery-Tips,2.00
03795,2025-03-07,Store Tips,InStoreTipAmount,3.00
03797,2025-03-07,Cash,Payouts,12.50
`
	sampleSummaryItems = `FranchiseStore,BusinessDate,MenuItemName,MenuItemAccount,ItemId,ItemQuantity,RoyaltyObligation,TaxableAmount,NonTaxableAmount,TaxExemptAmount,NonRoyaltyAmount,TaxIncludedAmount
03795,2025-03-07,Classic Pepperoni,Pizza,101,3,15.00,15.00,0,0,0,0
`
	sampleSummarySales = `FranchiseStore,BusinessDate,RoyaltyObligation,CustomerCount,TaxableAmount,NonTaxableAmount,TaxExemptAmount,NonRoyaltyAmount,RefundAmount,SalesTax,GrossSales,OccupationalTax,DeliveryTip,DeliveryFee,DeliveryServiceFee,DeliverySmallOrderFee,ModifiedOrderAmount,StoreTipAmount,PrepaidCashOrders,PrepaidNonCashOrders,PrepaidSales,PrepaidDeliveryTip,PrepaidInStoreTipAmount,OverShort,PreviousDayRefunds,SAF,ManagerNotes
03795,2025-03-07,45.00,3,45.00,0,0,0,0,3.60,52.00,0,4.00,3.00,1.00,0,0,0,0,0,0,0,0,-1.00,0,0,quiet day
`
	sampleSummaryTransactions = `FranchiseStore,BusinessDate,PaymentMethod,SubPaymentMethod,TotalAmount,SAFQty,SAFTotal
03795,2025-03-07,Credit Card,Visa/MC,45.00,0,0
`
	sampleDetailOrders = `FranchiseStore,BusinessDate,OrderId,RoyaltyObligation,GrossSales,SalesTax,OccupationalTax,DeliveryFee,DeliveryFeeTax,DeliveryServiceFee,DeliveryServiceFeeTax,DeliverySmallOrderFee,DeliverySmallOrderFeeTax,DeliveryTip,DeliveryTipTax,StoreTipAmount,TaxableAmount,CustomerCount,Employee,OverrideApprovalEmployee,ModificationReason,PaymentMethods,Refunded,OrderPlacedMethod,OrderFulfilledMethod,DateTimePlaced,PromiseDate,TimeLoadedIntoPortal,HNROrder,PortalEligible,PortalUsed,PutIntoPortalBeforePromiseTime
03795,2025-03-07,1001,10.00,10.80,0.80,0,0,0,0,0,0,0,0,0,0,10.00,1,Ann,,,Cash,No,Phone,Register,03/07/2025 10:40:00 AM,03/07/2025 11:00:00 AM,,Yes,Yes,Yes,Yes
03795,2025-03-07,1002,20.00,25.00,1.60,0,3.00,0.24,1.00,0.08,0,0,4.00,0,0,20.00,1,,,Promo: SAVE5,Credit,No,Website,Delivery,03/07/2025 11:30:00 AM,03/07/2025 12:00:00 PM,03/07/2025 12:05:01 PM,No,Yes,Yes,No
03795,2025-03-07,1003,15.00,16.20,1.20,0,0,0,0,0,0,0,0,0,0,15.00,1,,Mgr,,DoorDash,Yes,DoorDash,Delivery,03/07/2025 12:10:00 PM,03/07/2025 12:30:00 PM,,No,No,No,No
03796,2025-03-07,2001,8.00,10.00,0.64,0,2.00,0.16,0,0,0,0,1.00,0,0,8.00,2,,,,Credit,No,Mobile,Delivery,2025-03-07T17:50:00Z,2025-03-07T18:15:00Z,2025-03-07T18:20:00Z,No,Yes,Yes,Yes
`
	sampleOrderLines = `FranchiseStore,BusinessDate,OrderId,ItemId,MenuItemName,MenuItemAccount,Quantity,NetAmount,OrderPlacedMethod,OrderFulfilledMethod,DateTimePlaced
03795,2025-03-07,1001,101,Classic Pepperoni,Pizza,1,5.00,Phone,Register,03/07/2025 10:40:00 AM
03795,2025-03-07,1001,6,Crazy Bread,Sides,1,3.00,Phone,Register,03/07/2025 10:40:00 AM
03795,2025-03-07,1003,101,Classic Pepperoni,Pizza,2,10.00,DoorDash,Delivery,03/07/2025 12:10:00 PM
`
	sampleWaste = `FranchiseStore,BusinessDate,CVItemId,MenuItemName,Expired,WasteDateTime,ProduceDateTime,WasteReason,CVOrderId,WasteType,ItemCost,Quantity
03795,2025-03-07,101,Classic Pepperoni,Yes,03/07/2025 09:30:00 PM,03/07/2025 08:00:00 PM,Expired,,Product,1.50,2
03795,2025-03-07,6,Crazy Bread,No,03/07/2025 09:45:00 PM,03/07/2025 08:30:00 PM,Dropped,,Product,0.25,4
`
)

// SampleFeeds returns the sample bundle keyed by file name for SampleDate.
func SampleFeeds() map[string]string {
	name := func(prefix string) string { return prefix + "-Store_" + SampleDate + ".csv" }
	return map[string]string{
		name("Cash-Management"):              sampleCashManagement,
		name("SalesEntryForm-FinancialView"): sampleFinancialView,
		name("Summary-Items"):                sampleSummaryItems,
		name("Summary-Sales"):                sampleSummarySales,
		name("Summary-Transactions"):         sampleSummaryTransactions,
		name("Detail-Orders"):                sampleDetailOrders,
		name("Detail-OrderLines"):            sampleOrderLines,
		name("Waste-Report"):                 sampleWaste,
	}
}

// WriteBundle writes the sample feeds into dir.
func WriteBundle(t *testing.T, dir string) {
	t.Helper()
	for name, body := range SampleFeeds() {
		WriteFile(t, dir, name, body)
	}
}

// BuildZip writes files into a new zip at path and returns path.
func BuildZip(t *testing.T, path string, files map[string]string) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	defer f.Close()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish zip: %v", err)
	}
	return path
}

// SampleZip builds the sample bundle as a zip inside dir.
func SampleZip(t *testing.T, dir string) string {
	t.Helper()
	return BuildZip(t, filepath.Join(dir, "report_"+strings.ReplaceAll(SampleDate, "-", "")+".zip"), SampleFeeds())
}
