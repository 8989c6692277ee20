package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/checkout/internal/core/domain"
)

// OrderConfirmation is the payload posted to the notification sink.
type OrderConfirmation struct {
	OrderID        uint64    `json:"order_id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Total          string    `json:"total"`
	ShippingMethod string    `json:"shipping_method"`
	PlacedAt       time.Time `json:"placed_at"`
}

// WebhookNotifier delivers order confirmations to an external sink through a
// buffered queue drained by a worker pool. Delivery is fire-and-forget:
// enqueueing never blocks and failures never reach the checkout path.
type WebhookNotifier struct {
	sinkURL string
	client  *http.Client
	queue   chan OrderConfirmation
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewWebhookNotifier(sinkURL string, workers, queueSize int, logger *zap.Logger) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	n := &WebhookNotifier{
		sinkURL: sinkURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		queue:   make(chan OrderConfirmation, queueSize),
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.workerLoop(i)
	}
	return n
}

func (n *WebhookNotifier) OrderConfirmed(order *domain.Order) {
	msg := OrderConfirmation{
		OrderID:        order.ID,
		Email:          order.Email,
		FullName:       order.FullName,
		Total:          order.Total.StringFixed(2),
		ShippingMethod: string(order.ShippingMethod),
		PlacedAt:       order.PlacedAt,
	}
	select {
	case n.queue <- msg:
	default:
		n.logger.Warn("notification queue full, dropping confirmation",
			zap.Uint64("order_id", order.ID))
	}
}

func (n *WebhookNotifier) workerLoop(id int) {
	defer n.wg.Done()
	for msg := range n.queue {
		if err := n.send(msg); err != nil {
			n.logger.Error("confirmation delivery failed",
				zap.Int("worker", id),
				zap.Uint64("order_id", msg.OrderID),
				zap.Error(err))
		}
	}
}

func (n *WebhookNotifier) send(msg OrderConfirmation) error {
	if n.sinkURL == "" {
		// sink not configured; nothing to deliver
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}
	resp, err := n.client.Post(n.sinkURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sink responded %d", resp.StatusCode)
	}
	return nil
}

// Close drains the queue and stops the workers.
func (n *WebhookNotifier) Close() {
	close(n.queue)
	n.wg.Wait()
}
