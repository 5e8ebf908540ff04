// Package retail defines the domain model shared by the cache warmers and
// the PostgreSQL data source, and the read-only DataSource port the warmup
// orchestrator consumes.
package retail

import (
	"context"
	"time"
)

// Category is a product category with its current product count.
type Category struct {
	Name         string `json:"name"`
	ID           int64  `json:"id"`
	ProductCount int    `json:"product_count"`
}

// Supplier is an active goods supplier.
type Supplier struct {
	Name         string `json:"name"`
	ID           int64  `json:"id"`
	LeadTimeDays int    `json:"lead_time_days"`
}

// Branch is a physical retail location.
type Branch struct {
	Name string `json:"name"`
	City string `json:"city"`
	ID   int64  `json:"id"`
}

// InventorySummary aggregates stock state across all branches.
type InventorySummary struct {
	TotalProducts   int     `json:"total_products"`
	TotalStockUnits int64   `json:"total_stock_units"`
	LowStockCount   int     `json:"low_stock_count"`
	OutOfStockCount int     `json:"out_of_stock_count"`
	InventoryValue  float64 `json:"inventory_value"`
}

// ProductSales is one row of a top-sellers ranking.
type ProductSales struct {
	Name      string  `json:"name"`
	ProductID int64   `json:"product_id"`
	UnitsSold int64   `json:"units_sold"`
	Revenue   float64 `json:"revenue"`
}

// StockLevel is the stock position of one product at one branch.
type StockLevel struct {
	Name         string `json:"name"`
	ProductID    int64  `json:"product_id"`
	BranchID     int64  `json:"branch_id"`
	OnHand       int    `json:"on_hand"`
	ReorderPoint int    `json:"reorder_point"`
}

// BranchSnapshot is the point-of-sale view of a single branch for today.
type BranchSnapshot struct {
	TopSellers   []ProductSales `json:"top_sellers"`
	BranchID     int64          `json:"branch_id"`
	OrdersToday  int            `json:"orders_today"`
	RevenueToday float64        `json:"revenue_today"`
}

// StockPrediction is one ML-generated demand forecast row.
type StockPrediction struct {
	GeneratedAt       time.Time `json:"generated_at"`
	ProductID         int64     `json:"product_id"`
	BranchID          int64     `json:"branch_id"`
	PredictedDemand   float64   `json:"predicted_demand"`
	DaysUntilStockout int       `json:"days_until_stockout"`
}

// DataSource is the read-only port the cache warmers query.
// Implementations must be safe for concurrent use.
type DataSource interface {
	Categories(ctx context.Context) ([]Category, error)
	ActiveSuppliers(ctx context.Context) ([]Supplier, error)
	Branches(ctx context.Context) ([]Branch, error)
	InventorySummary(ctx context.Context) (InventorySummary, error)
	TopProducts(ctx context.Context, limit int) ([]ProductSales, error)
	LowStock(ctx context.Context, threshold int) ([]StockLevel, error)
	BranchSnapshot(ctx context.Context, branchID int64) (BranchSnapshot, error)
	StockPredictions(ctx context.Context) ([]StockPrediction, error)
}
