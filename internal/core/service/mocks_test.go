package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
)

type mockCarts struct {
	mu         sync.Mutex
	snapshot   *domain.CartSnapshot
	snapshotFn func(ids []uint64) (*domain.CartSnapshot, error)
	err        error
	cleared    []uint64
}

func (m *mockCarts) Snapshot(ctx context.Context, ids []uint64) (*domain.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.snapshotFn != nil {
		return m.snapshotFn(ids)
	}
	return m.snapshot, nil
}

func (m *mockCarts) ClearCart(ctx context.Context, cartID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, cartID)
	return nil
}

type mockOrders struct {
	mu          sync.Mutex
	seq         uint64
	orders      map[uint64]*domain.Order
	createErr   error
	finalizeErr error
}

func newMockOrders() *mockOrders {
	return &mockOrders{orders: make(map[uint64]*domain.Order)}
}

func (m *mockOrders) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	order.ID = m.seq
	stored := *order
	stored.Items = append([]domain.LineItem(nil), order.Items...)
	m.orders[order.ID] = &stored
	return nil
}

func (m *mockOrders) AssignTransaction(ctx context.Context, orderID uint64, tranID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.TransactionID != "" {
		return domain.ErrTransactionAssigned
	}
	o.TransactionID = tranID
	return nil
}

func (m *mockOrders) FindByTransactionID(ctx context.Context, tranID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TransactionID == tranID {
			cp := *o
			cp.Items = append([]domain.LineItem(nil), o.Items...)
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrders) Finalize(ctx context.Context, orderID uint64, state domain.PaymentState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalizeErr != nil {
		return false, m.finalizeErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.PaymentState != domain.PaymentPending {
		return false, nil
	}
	o.PaymentState = state
	return true, nil
}

func (m *mockOrders) DeletePending(ctx context.Context, orderID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.PaymentState != domain.PaymentPending {
		return false, nil
	}
	delete(m.orders, orderID)
	return true, nil
}

func (m *mockOrders) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.orders {
		if o.PaymentState == domain.PaymentPending && o.PlacedAt.Before(cutoff) {
			delete(m.orders, id)
			n++
		}
	}
	return n, nil
}

func (m *mockOrders) get(orderID uint64) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID]
}

func (m *mockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type mockLedger struct {
	mu        sync.Mutex
	variants  map[uint64]int
	products  map[uint64]int
	conflicts int // TryReserve fails with ErrStockConflict this many times first
	commitErr error
	seq       int
	held      map[string][]domain.LineItem
	heldAt    map[string]time.Time
	committed int
	released  int
}

func newMockLedger(variants, products map[uint64]int) *mockLedger {
	return &mockLedger{
		variants: variants,
		products: products,
		held:     make(map[string][]domain.LineItem),
		heldAt:   make(map[string]time.Time),
	}
}

func (m *mockLedger) TryReserve(ctx context.Context, orderID uint64, items []domain.LineItem) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return nil, domain.ErrStockConflict
	}
	perProduct := make(map[uint64]int)
	for _, li := range items {
		if m.variants[li.VariantID] < li.Quantity {
			return nil, &domain.StockShortfallError{
				VariantID: li.VariantID,
				ProductID: li.ProductID,
				Requested: li.Quantity,
				Available: m.variants[li.VariantID],
			}
		}
		perProduct[li.ProductID] += li.Quantity
	}
	for pid, qty := range perProduct {
		if m.products[pid] < qty {
			return nil, &domain.StockShortfallError{
				ProductID: pid,
				Requested: qty,
				Available: m.products[pid],
			}
		}
	}
	for _, li := range items {
		m.variants[li.VariantID] -= li.Quantity
	}
	for pid, qty := range perProduct {
		m.products[pid] -= qty
	}
	m.seq++
	token := fmt.Sprintf("res-%d", m.seq)
	m.held[token] = append([]domain.LineItem(nil), items...)
	m.heldAt[token] = time.Now()
	return &domain.Reservation{
		Token:   token,
		OrderID: orderID,
		Items:   items,
		State:   domain.ReservationHeld,
	}, nil
}

func (m *mockLedger) Commit(ctx context.Context, res *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	if _, ok := m.held[res.Token]; !ok {
		return nil
	}
	delete(m.held, res.Token)
	delete(m.heldAt, res.Token)
	m.committed++
	res.State = domain.ReservationCommitted
	return nil
}

func (m *mockLedger) Release(ctx context.Context, res *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseLocked(res.Token) {
		res.State = domain.ReservationReleased
	}
	return nil
}

func (m *mockLedger) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, at := range m.heldAt {
		if at.Before(cutoff) && m.releaseLocked(token) {
			n++
		}
	}
	return n, nil
}

func (m *mockLedger) releaseLocked(token string) bool {
	items, ok := m.held[token]
	if !ok {
		return false
	}
	delete(m.held, token)
	delete(m.heldAt, token)
	for _, li := range items {
		m.variants[li.VariantID] += li.Quantity
		m.products[li.ProductID] += li.Quantity
	}
	m.released++
	return true
}

func (m *mockLedger) variantStock(id uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variants[id]
}

func (m *mockLedger) productStock(id uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

type mockGateway struct {
	mu        sync.Mutex
	session   *domain.PaymentSession
	initErr   error
	initCalls int
}

func (m *mockGateway) InitiatePayment(ctx context.Context, order *domain.Order, tranID string) (*domain.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	if m.initErr != nil {
		return nil, m.initErr
	}
	if m.session != nil {
		return m.session, nil
	}
	return &domain.PaymentSession{RedirectURL: "https://gateway.example/pay", TransactionID: tranID}, nil
}

// ParseCallback mirrors the adapter's validation rules.
func (m *mockGateway) ParseCallback(kind domain.CallbackKind, form url.Values) (*domain.CallbackOutcome, error) {
	tranID := form.Get("tran_id")
	orderID, err := domain.ParseTransactionID(tranID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCallback, err)
	}
	outcome := &domain.CallbackOutcome{
		TransactionID:  tranID,
		OrderID:        orderID,
		ProviderStatus: form.Get("status"),
	}
	switch kind {
	case domain.CallbackSuccess:
		if outcome.ProviderStatus != "VALID" {
			outcome.Verdict = domain.VerdictFailed
			outcome.Reason = "invalid_status"
		} else {
			outcome.Verdict = domain.VerdictSuccess
		}
	case domain.CallbackCancel:
		outcome.Verdict = domain.VerdictCancelled
	default:
		outcome.Verdict = domain.VerdictFailed
	}
	return outcome, nil
}

type mockCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMockCache() *mockCache {
	return &mockCache{m: make(map[string]string)}
}

func (m *mockCache) RecordCallbackOutcome(ctx context.Context, key, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.m[key]; !ok {
		m.m[key] = redirectURL
	}
	return nil
}

func (m *mockCache) CallbackOutcome(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[key], nil
}

type mockNotifier struct {
	mu        sync.Mutex
	confirmed []uint64
}

func (m *mockNotifier) OrderConfirmed(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = append(m.confirmed, order.ID)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.confirmed)
}

type fixture struct {
	carts    *mockCarts
	orders   *mockOrders
	ledger   *mockLedger
	gateway  *mockGateway
	cache    *mockCache
	notifier *mockNotifier
	svc      *CheckoutService
}

func newFixture(carts *mockCarts, ledger *mockLedger) *fixture {
	f := &fixture{
		carts:    carts,
		orders:   newMockOrders(),
		ledger:   ledger,
		gateway:  &mockGateway{},
		cache:    newMockCache(),
		notifier: &mockNotifier{},
	}
	f.svc = NewCheckoutService(f.carts, f.orders, f.ledger, f.gateway, f.cache,
		f.notifier, "http://localhost:5173", nil)
	return f
}
