package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/openretail/pos/internal/core/domain"
	"github.com/openretail/pos/internal/port"
)

const mysqlDuplicateEntry = 1062

// storeErr marks a driver failure as the transient infrastructure kind so
// callers can tell a retryable outage from a business-rule rejection.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// MySQLAdapter implements port.Store over the products, sales and
// sale_items tables (see schema.sql).
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// WithinTx runs fn against one transaction. Business errors returned by fn
// abort the transaction and pass through untouched; driver failures are
// wrapped as domain.ErrStoreUnavailable.
func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(uow port.UnitOfWork) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) GetProductForUpdate(ctx context.Context, productID string) (*domain.Product, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, name, code, price, stock_qty, version, created_at, updated_at
		FROM products WHERE id = ? FOR UPDATE`, productID)
	return scanProduct(row, productID)
}

func (t *mysqlTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = stock_qty - ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND stock_qty >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return storeErr("decrement stock", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (t *mysqlTx) InsertSale(ctx context.Context, sale *domain.Sale) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (id, total, created_at) VALUES (?, ?, ?)`,
		sale.ID, sale.Total, sale.CreatedAt,
	)
	if err != nil {
		return storeErr("insert sale", err)
	}

	for _, item := range sale.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, product_code, quantity, price, subtotal)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sale.ID, item.ProductID, item.ProductName, item.ProductCode,
			item.Quantity, item.Price, item.Subtotal,
		)
		if err != nil {
			return storeErr("insert sale item", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, name, code, price, stock_qty, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Code, p.Price, p.StockQty, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return domain.ErrCodeInUse
		}
		return storeErr("insert product", err)
	}
	return nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, name, code, price, stock_qty, version, created_at, updated_at
		FROM products WHERE id = ?`, productID)
	return scanProduct(row, productID)
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return m.queryProducts(ctx, `
		SELECT id, name, code, price, stock_qty, version, created_at, updated_at
		FROM products ORDER BY name`)
}

func (m *MySQLAdapter) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	pattern := "%" + query + "%"
	return m.queryProducts(ctx, `
		SELECT id, name, code, price, stock_qty, version, created_at, updated_at
		FROM products WHERE name LIKE ? OR code LIKE ? ORDER BY name`,
		pattern, pattern)
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p *domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, code = ?, price = ?, stock_qty = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.Name, p.Code, p.Price, p.StockQty, p.UpdatedAt, p.ID, p.Version,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return domain.ErrCodeInUse
		}
		return storeErr("update product", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, productID string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID)
	if err != nil {
		return storeErr("delete product", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func (m *MySQLAdapter) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, total, created_at FROM sales ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, storeErr("query sales", err)
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.Total, &sale.CreatedAt); err != nil {
			return nil, storeErr("scan sale", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate sales", err)
	}

	for i := range sales {
		items, err := m.querySaleItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}
	return sales, nil
}

func (m *MySQLAdapter) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	err := m.db.QueryRowContext(ctx, `
		SELECT id, total, created_at FROM sales WHERE id = ?`, saleID,
	).Scan(&sale.ID, &sale.Total, &sale.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSaleNotFound
	}
	if err != nil {
		return nil, storeErr("query sale", err)
	}

	items, err := m.querySaleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (m *MySQLAdapter) querySaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, product_name, product_code, quantity, price, subtotal
		FROM sale_items WHERE sale_id = ? ORDER BY id`, saleID)
	if err != nil {
		return nil, storeErr("query sale items", err)
	}
	defer rows.Close()

	var items []domain.SaleItem
	for rows.Next() {
		var item domain.SaleItem
		err := rows.Scan(&item.ProductID, &item.ProductName, &item.ProductCode,
			&item.Quantity, &item.Price, &item.Subtotal)
		if err != nil {
			return nil, storeErr("scan sale item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate sale items", err)
	}
	return items, nil
}

func (m *MySQLAdapter) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query products", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Price, &p.StockQty,
			&p.Version, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, storeErr("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate products", err)
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, productID string) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Price, &p.StockQty,
		&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, storeErr("scan product", err)
	}
	return &p, nil
}
