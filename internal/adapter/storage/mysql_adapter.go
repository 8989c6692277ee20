package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/checkout/internal/core/domain"
)

// MySQLAdapter implements the order store, inventory ledger, and cart
// collaborator on one database handle. Ledger methods live in mysql_ledger.go.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// mapLockErr translates MySQL deadlock (1213) and lock-wait timeout (1205)
// into the conflict sentinel so the orchestrator can retry.
func mapLockErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == 1213 || me.Number == 1205) {
		return fmt.Errorf("%w: %v", domain.ErrStockConflict, err)
	}
	return err
}

func (m *MySQLAdapter) Create(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (total, full_name, address, email, phone, city,
			shipping_method, payment_state, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.Total.StringFixed(2), order.FullName, order.Address, order.Email,
		order.Phone, order.City, string(order.ShippingMethod),
		string(order.PaymentState), order.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}

	for _, li := range order.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, variant_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			id, li.VariantID, li.ProductID, li.Quantity, li.UnitPrice.StringFixed(2),
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	order.ID = uint64(id)
	return nil
}

func (m *MySQLAdapter) AssignTransaction(ctx context.Context, orderID uint64, tranID string) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET transaction_id = ?
		WHERE id = ? AND transaction_id IS NULL`,
		tranID, orderID,
	)
	if err != nil {
		return fmt.Errorf("assign transaction: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrTransactionAssigned
	}
	return nil
}

func (m *MySQLAdapter) FindByTransactionID(ctx context.Context, tranID string) (*domain.Order, error) {
	var (
		order  domain.Order
		total  string
		tran   sql.NullString
		method string
		state  string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, total, full_name, address, email, phone, city,
			shipping_method, payment_state, transaction_id, placed_at
		FROM orders WHERE transaction_id = ?`, tranID,
	).Scan(&order.ID, &total, &order.FullName, &order.Address, &order.Email,
		&order.Phone, &order.City, &method, &state, &tran, &order.PlacedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	order.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse order total: %w", err)
	}
	order.ShippingMethod = domain.ShippingMethod(method)
	order.PaymentState = domain.PaymentState(state)
	if tran.Valid {
		order.TransactionID = tran.String
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT variant_id, product_id, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY id`, order.ID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			li    domain.LineItem
			price string
		)
		if err := rows.Scan(&li.VariantID, &li.ProductID, &li.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		li.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		order.Items = append(order.Items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return &order, nil
}

func (m *MySQLAdapter) Finalize(ctx context.Context, orderID uint64, state domain.PaymentState) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET payment_state = ?
		WHERE id = ? AND payment_state = ?`,
		string(state), orderID, string(domain.PaymentPending),
	)
	if err != nil {
		return false, fmt.Errorf("finalize order: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// DeletePending is conditional on the row still being pending, so a callback
// acting on a stale snapshot can never destroy an order another callback
// already finalized. order_items cascade on delete.
func (m *MySQLAdapter) DeletePending(ctx context.Context, orderID uint64) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		DELETE FROM orders WHERE id = ? AND payment_state = ?`,
		orderID, string(domain.PaymentPending),
	)
	if err != nil {
		return false, fmt.Errorf("delete pending order: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		DELETE FROM orders WHERE payment_state = ? AND placed_at < ?`,
		string(domain.PaymentPending), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale pending orders: %w", err)
	}
	return result.RowsAffected()
}

func (m *MySQLAdapter) Snapshot(ctx context.Context, cartItemIDs []uint64) (*domain.CartSnapshot, error) {
	if len(cartItemIDs) == 0 {
		return nil, domain.ErrEmptyCart
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cartItemIDs)), ",")
	args := make([]any, len(cartItemIDs))
	for i, id := range cartItemIDs {
		args[i] = id
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.variant_id, ci.quantity,
			v.product_id, v.price, p.price
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	snapshot := &domain.CartSnapshot{}
	found := 0
	for rows.Next() {
		var (
			itemID       uint64
			cartID       uint64
			li           domain.LineItem
			variantPrice sql.NullString
			productPrice string
		)
		if err := rows.Scan(&itemID, &cartID, &li.VariantID, &li.Quantity,
			&li.ProductID, &variantPrice, &productPrice); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if li.Quantity < 1 {
			return nil, fmt.Errorf("cart item %d: %w", itemID, domain.ErrInvalidQuantity)
		}
		// variant price wins when set, otherwise the product price applies
		price := productPrice
		if variantPrice.Valid {
			price = variantPrice.String
		}
		li.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price for cart item %d: %w", itemID, err)
		}
		if snapshot.CartID == 0 {
			snapshot.CartID = cartID
		} else if snapshot.CartID != cartID {
			return nil, fmt.Errorf("%w: items span multiple carts", domain.ErrCartItemNotFound)
		}
		snapshot.Items = append(snapshot.Items, li)
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	if found != len(cartItemIDs) {
		return nil, domain.ErrCartItemNotFound
	}
	return snapshot, nil
}

func (m *MySQLAdapter) ClearCart(ctx context.Context, cartID uint64) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
