package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/checkout/internal/core/domain"
)

// TryReserve checks and decrements the variant and product counters for every
// line item inside one transaction. Rows are locked in deterministic id order
// so two checkouts touching the same variants serialize instead of deadlocking.
// No counter moves unless all items fit.
func (m *MySQLAdapter) TryReserve(ctx context.Context, orderID uint64, items []domain.LineItem) (*domain.Reservation, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sorted := make([]domain.LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VariantID < sorted[j].VariantID })

	// a cart can hold several variants of one product; the product counter
	// must cover their combined quantity
	perProduct := make(map[uint64]int)
	for _, li := range sorted {
		var available int
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM product_variants WHERE id = ? FOR UPDATE`,
			li.VariantID,
		).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("variant %d: %w", li.VariantID, domain.ErrUnknownVariant)
		}
		if err != nil {
			return nil, mapLockErr(fmt.Errorf("lock variant %d: %w", li.VariantID, err))
		}
		if available < li.Quantity {
			return nil, &domain.StockShortfallError{
				VariantID: li.VariantID,
				ProductID: li.ProductID,
				Requested: li.Quantity,
				Available: available,
			}
		}
		perProduct[li.ProductID] += li.Quantity
	}

	productIDs := make([]uint64, 0, len(perProduct))
	for pid := range perProduct {
		productIDs = append(productIDs, pid)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	for _, pid := range productIDs {
		var available int
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM products WHERE id = ? FOR UPDATE`, pid,
		).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", pid, domain.ErrUnknownVariant)
		}
		if err != nil {
			return nil, mapLockErr(fmt.Errorf("lock product %d: %w", pid, err))
		}
		if available < perProduct[pid] {
			return nil, &domain.StockShortfallError{
				ProductID: pid,
				Requested: perProduct[pid],
				Available: available,
			}
		}
	}

	for _, li := range sorted {
		result, err := tx.ExecContext(ctx, `
			UPDATE product_variants SET quantity = quantity - ?
			WHERE id = ? AND quantity >= ?`,
			li.Quantity, li.VariantID, li.Quantity,
		)
		if err != nil {
			return nil, mapLockErr(fmt.Errorf("decrement variant %d: %w", li.VariantID, err))
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			// cannot happen while the row is locked; kept as a guard
			return nil, domain.ErrStockConflict
		}
	}
	for _, pid := range productIDs {
		result, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity = quantity - ?
			WHERE id = ? AND quantity >= ?`,
			perProduct[pid], pid, perProduct[pid],
		)
		if err != nil {
			return nil, mapLockErr(fmt.Errorf("decrement product %d: %w", pid, err))
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return nil, domain.ErrStockConflict
		}
	}

	token := uuid.NewString()
	now := time.Now()
	var orderRef any
	if orderID != 0 {
		orderRef = orderID
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (token, order_id, state, created_at)
		VALUES (?, ?, ?, ?)`,
		token, orderRef, string(domain.ReservationHeld), now,
	); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	for _, li := range sorted {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reservation_items (token, variant_id, product_id, quantity)
			VALUES (?, ?, ?, ?)`,
			token, li.VariantID, li.ProductID, li.Quantity,
		); err != nil {
			return nil, fmt.Errorf("insert reservation item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapLockErr(fmt.Errorf("commit reservation tx: %w", err))
	}

	return &domain.Reservation{
		Token:     token,
		OrderID:   orderID,
		Items:     sorted,
		State:     domain.ReservationHeld,
		CreatedAt: now,
	}, nil
}

// Commit spends the reservation token. The counters were already decremented
// at reserve time; committing only pins them. Spent tokens are a no-op.
func (m *MySQLAdapter) Commit(ctx context.Context, res *domain.Reservation) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE reservations SET state = ? WHERE token = ? AND state = ?`,
		string(domain.ReservationCommitted), res.Token, string(domain.ReservationHeld),
	)
	if err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		res.State = domain.ReservationCommitted
	}
	return nil
}

// Release restores the counters of a still-held reservation. Only the caller
// that flips the token from held wins; committed or already-released tokens
// are a no-op, so a release can never undo a committed order.
func (m *MySQLAdapter) Release(ctx context.Context, res *domain.Reservation) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE reservations SET state = ? WHERE token = ? AND state = ?`,
		string(domain.ReservationReleased), res.Token, string(domain.ReservationHeld),
	)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT variant_id, product_id, quantity
		FROM reservation_items WHERE token = ?`, res.Token)
	if err != nil {
		return fmt.Errorf("query reservation items: %w", err)
	}
	defer rows.Close()

	type held struct {
		variantID uint64
		productID uint64
		quantity  int
	}
	var items []held
	for rows.Next() {
		var h held
		if err := rows.Scan(&h.variantID, &h.productID, &h.quantity); err != nil {
			return fmt.Errorf("scan reservation item: %w", err)
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate reservation items: %w", err)
	}

	perProduct := make(map[uint64]int)
	for _, h := range items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE product_variants SET quantity = quantity + ? WHERE id = ?`,
			h.quantity, h.variantID,
		); err != nil {
			return mapLockErr(fmt.Errorf("restore variant %d: %w", h.variantID, err))
		}
		perProduct[h.productID] += h.quantity
	}
	for pid, qty := range perProduct {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity = quantity + ? WHERE id = ?`,
			qty, pid,
		); err != nil {
			return mapLockErr(fmt.Errorf("restore product %d: %w", pid, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return mapLockErr(fmt.Errorf("commit release tx: %w", err))
	}
	res.State = domain.ReservationReleased
	return nil
}

// ReleaseExpired sweeps reservations orphaned in 'held', e.g. by a crash
// between reserve and commit. Each release goes through the same conditional
// token flip, so a reservation committed while the sweep runs stays intact.
func (m *MySQLAdapter) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT token FROM reservations WHERE state = ? AND created_at < ?`,
		string(domain.ReservationHeld), cutoff)
	if err != nil {
		return 0, fmt.Errorf("query expired reservations: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return 0, fmt.Errorf("scan reservation token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate expired reservations: %w", err)
	}

	var released int64
	for _, token := range tokens {
		res := &domain.Reservation{Token: token, State: domain.ReservationHeld}
		if err := m.Release(ctx, res); err != nil {
			return released, fmt.Errorf("release reservation %s: %w", token, err)
		}
		if res.State == domain.ReservationReleased {
			released++
		}
	}
	return released, nil
}
