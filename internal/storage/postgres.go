// Package storage implements the retail.DataSource port over PostgreSQL.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroomhq/stockroom/internal/retail"
)

// Postgres is a read-only retail data source backed by a pgx pool.
// Safe for concurrent use; the pool handles connection management.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a data source over an established connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Categories returns all product categories with their current product counts.
func (p *Postgres) Categories(ctx context.Context) ([]retail.Category, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT c.id, c.name, COUNT(pr.id)
		FROM categories c
		LEFT JOIN products pr ON pr.category_id = c.id
		GROUP BY c.id, c.name
		ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("storage: query categories: %w", err)
	}
	defer rows.Close()

	var out []retail.Category
	for rows.Next() {
		var c retail.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ProductCount); err != nil {
			return nil, fmt.Errorf("storage: scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveSuppliers returns suppliers currently accepting orders.
func (p *Postgres) ActiveSuppliers(ctx context.Context) ([]retail.Supplier, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, lead_time_days
		FROM suppliers
		WHERE active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("storage: query suppliers: %w", err)
	}
	defer rows.Close()

	var out []retail.Supplier
	for rows.Next() {
		var s retail.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.LeadTimeDays); err != nil {
			return nil, fmt.Errorf("storage: scan supplier: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Branches returns all retail branches.
func (p *Postgres) Branches(ctx context.Context) ([]retail.Branch, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, city
		FROM branches
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: query branches: %w", err)
	}
	defer rows.Close()

	var out []retail.Branch
	for rows.Next() {
		var b retail.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.City); err != nil {
			return nil, fmt.Errorf("storage: scan branch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// InventorySummary aggregates stock across all branches in one query.
func (p *Postgres) InventorySummary(ctx context.Context) (retail.InventorySummary, error) {
	var sum retail.InventorySummary
	err := p.pool.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT pr.id),
			COALESCE(SUM(inv.on_hand), 0),
			COUNT(*) FILTER (WHERE inv.on_hand > 0 AND inv.on_hand <= inv.reorder_point),
			COUNT(*) FILTER (WHERE inv.on_hand = 0),
			COALESCE(SUM(inv.on_hand * pr.unit_price), 0)
		FROM products pr
		LEFT JOIN inventory inv ON inv.product_id = pr.id`).
		Scan(&sum.TotalProducts, &sum.TotalStockUnits, &sum.LowStockCount, &sum.OutOfStockCount, &sum.InventoryValue)
	if err != nil {
		return retail.InventorySummary{}, fmt.Errorf("storage: query inventory summary: %w", err)
	}
	return sum, nil
}

// TopProducts ranks products by units sold over the last 30 days.
func (p *Postgres) TopProducts(ctx context.Context, limit int) ([]retail.ProductSales, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT pr.id, pr.name, SUM(oi.quantity), SUM(oi.quantity * oi.unit_price)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products pr ON pr.id = oi.product_id
		WHERE o.created_at >= now() - interval '30 days'
		GROUP BY pr.id, pr.name
		ORDER BY SUM(oi.quantity) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query top products: %w", err)
	}
	defer rows.Close()

	var out []retail.ProductSales
	for rows.Next() {
		var ps retail.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.UnitsSold, &ps.Revenue); err != nil {
			return nil, fmt.Errorf("storage: scan product sales: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// LowStock lists stock positions at or below the given on-hand threshold.
func (p *Postgres) LowStock(ctx context.Context, threshold int) ([]retail.StockLevel, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT pr.id, pr.name, inv.branch_id, inv.on_hand, inv.reorder_point
		FROM inventory inv
		JOIN products pr ON pr.id = inv.product_id
		WHERE inv.on_hand <= $1 OR inv.on_hand <= inv.reorder_point
		ORDER BY inv.on_hand`, threshold)
	if err != nil {
		return nil, fmt.Errorf("storage: query low stock: %w", err)
	}
	defer rows.Close()

	var out []retail.StockLevel
	for rows.Next() {
		var sl retail.StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.Name, &sl.BranchID, &sl.OnHand, &sl.ReorderPoint); err != nil {
			return nil, fmt.Errorf("storage: scan stock level: %w", err)
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// BranchSnapshot builds today's point-of-sale view for one branch.
func (p *Postgres) BranchSnapshot(ctx context.Context, branchID int64) (retail.BranchSnapshot, error) {
	snap := retail.BranchSnapshot{BranchID: branchID}

	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(o.total), 0)
		FROM orders o
		WHERE o.branch_id = $1 AND o.created_at >= date_trunc('day', now())`, branchID).
		Scan(&snap.OrdersToday, &snap.RevenueToday)
	if err != nil {
		return retail.BranchSnapshot{}, fmt.Errorf("storage: query branch totals: %w", err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT pr.id, pr.name, SUM(oi.quantity), SUM(oi.quantity * oi.unit_price)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products pr ON pr.id = oi.product_id
		WHERE o.branch_id = $1 AND o.created_at >= date_trunc('day', now())
		GROUP BY pr.id, pr.name
		ORDER BY SUM(oi.quantity) DESC
		LIMIT 5`, branchID)
	if err != nil {
		return retail.BranchSnapshot{}, fmt.Errorf("storage: query branch top sellers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ps retail.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.UnitsSold, &ps.Revenue); err != nil {
			return retail.BranchSnapshot{}, fmt.Errorf("storage: scan branch top seller: %w", err)
		}
		snap.TopSellers = append(snap.TopSellers, ps)
	}
	return snap, rows.Err()
}

// StockPredictions returns the most recent forecast batch.
func (p *Postgres) StockPredictions(ctx context.Context) ([]retail.StockPrediction, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT product_id, branch_id, predicted_demand, days_until_stockout, generated_at
		FROM stock_predictions
		WHERE generated_at = (SELECT MAX(generated_at) FROM stock_predictions)
		ORDER BY days_until_stockout`)
	if err != nil {
		return nil, fmt.Errorf("storage: query stock predictions: %w", err)
	}
	defer rows.Close()

	var out []retail.StockPrediction
	for rows.Next() {
		var sp retail.StockPrediction
		if err := rows.Scan(&sp.ProductID, &sp.BranchID, &sp.PredictedDemand, &sp.DaysUntilStockout, &sp.GeneratedAt); err != nil {
			return nil, fmt.Errorf("storage: scan stock prediction: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

var _ retail.DataSource = (*Postgres)(nil)
