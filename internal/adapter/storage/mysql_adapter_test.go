package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/openretail/pos/internal/core/domain"
	"github.com/openretail/pos/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/pos?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func insertTestProduct(t *testing.T, db *sql.DB, id string, price string, stock int) {
	t.Helper()
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `
		INSERT INTO products (id, name, code, price, stock_qty, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, NOW(6), NOW(6))
		ON DUPLICATE KEY UPDATE stock_qty = VALUES(stock_qty), price = VALUES(price), version = 1`,
		id, "Test "+id, "code-"+id, price, stock)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM sale_items WHERE product_id = ?`, id)
		db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	})
}

func checkout(adapter *MySQLAdapter, saleID, productID string, qty int) error {
	ctx := context.Background()
	return adapter.WithinTx(ctx, func(uow port.UnitOfWork) error {
		product, err := uow.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product.StockQty < qty {
			return &domain.InsufficientStockError{
				ProductID: product.ID, Name: product.Name,
				Requested: qty, Available: product.StockQty,
			}
		}
		if err := uow.DecrementStock(ctx, productID, qty); err != nil {
			return err
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(qty)))
		return uow.InsertSale(ctx, &domain.Sale{
			ID:        saleID,
			Total:     subtotal,
			CreatedAt: time.Now().UTC(),
			Items: []domain.SaleItem{{
				ProductID:   product.ID,
				ProductName: product.Name,
				ProductCode: product.Code,
				Quantity:    qty,
				Price:       product.Price,
				Subtotal:    subtotal,
			}},
		})
	})
}

func TestWithinTx_CommitPersistsSaleAndDecrementsStock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	productID := fmt.Sprintf("tx-commit-%d", time.Now().UnixNano())
	insertTestProduct(t, db, productID, "10.00", 5)

	saleID := "test-sale-" + productID
	if err := checkout(adapter, saleID, productID, 3); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	defer func() {
		db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = ?`, saleID)
		db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, saleID)
	}()

	var stock int
	db.QueryRowContext(ctx, `SELECT stock_qty FROM products WHERE id = ?`, productID).Scan(&stock)
	if stock != 2 {
		t.Errorf("expected stock 2, got %d", stock)
	}

	sale, err := adapter.GetSale(ctx, saleID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if len(sale.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(sale.Items))
	}
	if !sale.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected total 30.00, got %s", sale.Total)
	}
	if !sale.Items[0].Subtotal.Equal(sale.Total) {
		t.Errorf("item subtotal %s does not match total %s", sale.Items[0].Subtotal, sale.Total)
	}
}

func TestWithinTx_ErrorRollsBackEarlierDecrements(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	okID := fmt.Sprintf("tx-rb-a-%d", time.Now().UnixNano())
	shortID := fmt.Sprintf("tx-rb-b-%d", time.Now().UnixNano())
	insertTestProduct(t, db, okID, "10.00", 5)
	insertTestProduct(t, db, shortID, "10.00", 0)

	err := adapter.WithinTx(ctx, func(uow port.UnitOfWork) error {
		if err := uow.DecrementStock(ctx, okID, 2); err != nil {
			return err
		}
		// Second line has no stock; the guard must abort the transaction.
		return uow.DecrementStock(ctx, shortID, 1)
	})
	if err == nil {
		t.Fatal("expected transaction to fail")
	}

	var stock int
	db.QueryRowContext(ctx, `SELECT stock_qty FROM products WHERE id = ?`, okID).Scan(&stock)
	if stock != 5 {
		t.Errorf("expected first product's decrement rolled back, stock = %d", stock)
	}
}

func TestConcurrentCheckouts_LastUnit(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	productID := fmt.Sprintf("tx-race-%d", time.Now().UnixNano())
	insertTestProduct(t, db, productID, "10.00", 1)

	saleIDs := []string{"test-race-a-" + productID, "test-race-b-" + productID}
	defer func() {
		for _, id := range saleIDs {
			db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = ?`, id)
			db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id)
		}
	}()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, saleID := range saleIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			results <- checkout(adapter, id, productID, 1)
		}(saleID)
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one winning checkout, got %d", successes)
	}

	var stock int
	db.QueryRowContext(ctx, `SELECT stock_qty FROM products WHERE id = ?`, productID).Scan(&stock)
	if stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
}

func TestProductCRUD(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	id := fmt.Sprintf("crud-%d", time.Now().UnixNano())

	now := time.Now().UTC().Truncate(time.Microsecond)
	product := &domain.Product{
		ID:        id,
		Name:      "CRUD Product",
		Code:      "code-" + id,
		Price:     decimal.RequireFromString("4.20"),
		StockQty:  7,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := adapter.CreateProduct(ctx, product); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)

	got, err := adapter.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !got.Price.Equal(product.Price) || got.StockQty != 7 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	found, err := adapter.SearchProducts(ctx, "code-"+id)
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("expected 1 search hit, got %d", len(found))
	}

	got.Name = "Renamed"
	if err := adapter.UpdateProduct(ctx, got); err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}

	// Stale version must conflict.
	if err := adapter.UpdateProduct(ctx, got); err != domain.ErrConflict {
		t.Errorf("expected ErrConflict on stale version, got %v", err)
	}

	if err := adapter.DeleteProduct(ctx, id); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}
	if _, err := adapter.GetProduct(ctx, id); err == nil {
		t.Error("expected not found after delete")
	}
}

func TestUnreachableStore_ErrorsAreTransient(t *testing.T) {
	// Port 1 refuses connections, so every call fails at the driver level.
	db, err := sql.Open("mysql", "root:root@tcp(127.0.0.1:1)/pos?parseTime=true&timeout=500ms")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	if _, err := adapter.GetProduct(ctx, "p1"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("GetProduct: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := adapter.ListProducts(ctx); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("ListProducts: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := adapter.ListSales(ctx); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("ListSales: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := adapter.GetSale(ctx, "s1"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("GetSale: expected ErrStoreUnavailable, got %v", err)
	}

	err = adapter.WithinTx(ctx, func(uow port.UnitOfWork) error {
		t.Error("transaction body must not run when the store is unreachable")
		return nil
	})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("WithinTx: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestCreateProduct_DuplicateCode(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	id := fmt.Sprintf("dup-%d", time.Now().UnixNano())
	insertTestProduct(t, db, id, "1.00", 1)

	now := time.Now().UTC()
	err := adapter.CreateProduct(ctx, &domain.Product{
		ID:        id + "-other",
		Name:      "Other",
		Code:      "code-" + id,
		Price:     decimal.New(1, 0),
		StockQty:  1,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != domain.ErrCodeInUse {
		t.Errorf("expected ErrCodeInUse, got %v", err)
	}
}
