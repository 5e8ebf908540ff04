package warmup

import "strconv"

// Cache key names for the warmup domains. Write paths build their
// invalidation patterns against these (e.g. "dashboard_*" after an order
// commit, the "low_stock" tag after an inventory adjustment).
const (
	KeyRefCategories = "ref_categories"
	KeyRefSuppliers  = "ref_suppliers"
	KeyRefBranches   = "ref_branches"

	KeyDashboardSummary     = "dashboard_summary"
	KeyDashboardTopProducts = "dashboard_top_products"
	KeyDashboardLowStock    = "dashboard_low_stock"

	KeyStockPredictions = "ml_stock_predictions"

	posBranchPrefix = "pos_branch_"
)

// KeyPOSBranch returns the point-of-sale slot key for one branch.
func KeyPOSBranch(branchID int64) string {
	return posBranchPrefix + strconv.FormatInt(branchID, 10)
}
