package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"storecore/internal/core/domain"
)

// MySQLAdapter implements port.LedgerRepository. All stock and reservation
// guards are single conditional statements or single transactions, so two
// concurrent sessions can never both pass a check-then-act sequence.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// storeErr tags transport-level failures so callers can recognize an
// unavailable store without matching driver error strings.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStoreUnavailable, err))
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id         VARCHAR(64) PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		price      DECIMAL(10,2) NOT NULL DEFAULT 0,
		stock      INT NOT NULL DEFAULT 0,
		version    INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id           CHAR(36) PRIMARY KEY,
		product_id   VARCHAR(64) NOT NULL,
		holder_id    VARCHAR(64) NOT NULL,
		holder_name  VARCHAR(255) NOT NULL,
		holder_email VARCHAR(255) NOT NULL,
		status       VARCHAR(16) NOT NULL,
		reserved_at  DATETIME NOT NULL,
		expires_at   DATETIME NOT NULL,
		INDEX idx_reservations_product_status (product_id, status)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               CHAR(36) PRIMARY KEY,
		user_id          VARCHAR(64) NOT NULL,
		total_amount     DECIMAL(10,2) NOT NULL DEFAULT 0,
		status           VARCHAR(16) NOT NULL,
		shipping_address TEXT,
		payment_method   VARCHAR(64),
		restocked        TINYINT(1) NOT NULL DEFAULT 0,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id           BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id     CHAR(36) NOT NULL,
		product_id   VARCHAR(64) NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity     INT NOT NULL,
		unit_price   DECIMAL(10,2) NOT NULL,
		line_total   DECIMAL(10,2) NOT NULL,
		INDEX idx_order_items_order (order_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_history (
		id             BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id     VARCHAR(64) NOT NULL,
		previous_stock INT NOT NULL,
		new_stock      INT NOT NULL,
		quantity       INT NOT NULL,
		reason         VARCHAR(255) NOT NULL,
		created_by     VARCHAR(64) NOT NULL,
		created_at     DATETIME NOT NULL,
		INDEX idx_stock_history_product (product_id)
	)`,
}

// Migrate creates the schema if it does not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return storeErr("migrate", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock, version, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Version, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("query product", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND stock >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return false, storeErr("decrement stock", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return true, nil
	}

	var one int
	err = m.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, productID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if err != nil {
		return false, storeErr("query product", err)
	}
	return false, nil
}

func (m *MySQLAdapter) IncrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		quantity, productID,
	)
	if err != nil {
		return storeErr("increment stock", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return nil
}

func (m *MySQLAdapter) DecrementStockAll(ctx context.Context, items []domain.OrderItem) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	defer tx.Rollback()

	// Stable lock order across concurrent orders.
	sorted := make([]domain.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	for _, it := range sorted {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, version = version + 1, updated_at = NOW()
			WHERE id = ? AND stock >= ?`,
			it.Quantity, it.ProductID, it.Quantity,
		)
		if err != nil {
			return storeErr("decrement stock", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			var one int
			err = tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, it.ProductID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("product %s: %w", it.ProductID, domain.ErrProductNotFound)
			}
			if err != nil {
				return storeErr("query product", err)
			}
			return fmt.Errorf("product %s: %w", it.ProductID, domain.ErrInsufficientStock)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit tx", err)
	}
	return nil
}

func (m *MySQLAdapter) SetStockVersioned(ctx context.Context, productID string, newStock, version int, rec domain.StockHistory) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("begin tx", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		newStock, productID, version,
	)
	if err != nil {
		return false, storeErr("update stock", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_history (product_id, previous_stock, new_stock, quantity, reason, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ProductID, rec.PreviousStock, rec.NewStock, rec.Quantity, rec.Reason, rec.CreatedBy, rec.CreatedAt,
	)
	if err != nil {
		return false, storeErr("insert stock history", err)
	}

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit tx", err)
	}
	return true, nil
}

func (m *MySQLAdapter) ListStockHistory(ctx context.Context, productID string) ([]domain.StockHistory, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, product_id, previous_stock, new_stock, quantity, reason, created_by, created_at
		FROM stock_history WHERE product_id = ?
		ORDER BY created_at DESC, id DESC`, productID,
	)
	if err != nil {
		return nil, storeErr("query stock history", err)
	}
	defer rows.Close()

	var out []domain.StockHistory
	for rows.Next() {
		var h domain.StockHistory
		if err := rows.Scan(&h.ID, &h.ProductID, &h.PreviousStock, &h.NewStock, &h.Quantity, &h.Reason, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, storeErr("scan stock history", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate stock history", err)
	}
	return out, nil
}

func (m *MySQLAdapter) CreateReservation(ctx context.Context, r domain.Reservation) (bool, error) {
	// Insert only when no live active claim exists: the write itself is the
	// exclusivity check, so two racing sessions cannot both get a claim.
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO reservations (id, product_id, holder_id, holder_name, holder_email, status, reserved_at, expires_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		FROM DUAL
		WHERE NOT EXISTS (
			SELECT 1 FROM reservations
			WHERE product_id = ? AND status = ? AND expires_at > ?
		)`,
		r.ID, r.ProductID, r.HolderID, r.HolderName, r.HolderEmail, string(r.Status), r.ReservedAt, r.ExpiresAt,
		r.ProductID, string(domain.ReservationStatusActive), r.ReservedAt,
	)
	if err != nil {
		return false, storeErr("insert reservation", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) ActiveReservations(ctx context.Context, productID string) ([]domain.Reservation, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, product_id, holder_id, holder_name, holder_email, status, reserved_at, expires_at
		FROM reservations
		WHERE product_id = ? AND status = ?
		ORDER BY reserved_at DESC, id DESC`,
		productID, string(domain.ReservationStatusActive),
	)
	if err != nil {
		return nil, storeErr("query reservations", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var r domain.Reservation
		if err := rows.Scan(&r.ID, &r.ProductID, &r.HolderID, &r.HolderName, &r.HolderEmail, &r.Status, &r.ReservedAt, &r.ExpiresAt); err != nil {
			return nil, storeErr("scan reservation", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate reservations", err)
	}
	return out, nil
}

func (m *MySQLAdapter) TransitionReservation(ctx context.Context, reservationID string, from, to domain.ReservationStatus) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
		string(to), reservationID, string(from),
	)
	if err != nil {
		return false, storeErr("transition reservation", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE reservations SET status = ?
		WHERE status = ? AND expires_at <= ?`,
		string(domain.ReservationStatusExpired), string(domain.ReservationStatusActive), now,
	)
	if err != nil {
		return 0, storeErr("expire reservations", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, shipping_address, payment_method, restocked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		order.ID, order.UserID, order.TotalAmount, string(order.Status),
		order.ShippingAddress, order.PaymentMethod, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return storeErr("insert order", err)
	}

	for _, it := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal,
		)
		if err != nil {
			return storeErr("insert order item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit tx", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_amount, status, shipping_address, payment_method, restocked, created_at, updated_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.ShippingAddress, &o.PaymentMethod, &o.Restocked, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("query order", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, storeErr("query order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, storeErr("scan order item", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate order items", err)
	}
	return &o, nil
}

func (m *MySQLAdapter) CancelOrderAndRestock(ctx context.Context, orderID string) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("begin tx", err)
	}
	defer tx.Rollback()

	// The restocked flag flips at most once, so repeated cancellations
	// cannot double-credit stock.
	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, restocked = 1, updated_at = NOW()
		WHERE id = ? AND restocked = 0`,
		string(domain.OrderStatusCancelled), orderID,
	)
	if err != nil {
		return false, storeErr("cancel order", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
		}
		if err != nil {
			return false, storeErr("query order", err)
		}
		return false, nil
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM order_items WHERE order_id = ?`, orderID,
	)
	if err != nil {
		return false, storeErr("query order items", err)
	}
	type restock struct {
		productID string
		quantity  int
	}
	var restocks []restock
	for itemRows.Next() {
		var rs restock
		if err := itemRows.Scan(&rs.productID, &rs.quantity); err != nil {
			itemRows.Close()
			return false, storeErr("scan order item", err)
		}
		restocks = append(restocks, rs)
	}
	if err := itemRows.Err(); err != nil {
		itemRows.Close()
		return false, storeErr("iterate order items", err)
	}
	itemRows.Close()

	for _, rs := range restocks {
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + ?, version = version + 1, updated_at = NOW()
			WHERE id = ?`,
			rs.quantity, rs.productID,
		)
		if err != nil {
			return false, storeErr("restock product", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit tx", err)
	}
	return true, nil
}
