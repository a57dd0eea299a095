package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrEmptyCart = errors.New("cart is empty")

type Order struct {
	IdempotencyKey string
	Items          []LineItem
	Total          float64
}

type Receipt struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status,omitempty"`
}

type Placer interface {
	PlaceOrder(ctx context.Context, order Order) (*Receipt, error)
}

// Checkout submits the cart as an order and takes the ordered quantities out once the
// backend accepts. Anything added while the order was in flight stays in the cart.
// A rejected order leaves the cart as it was.
func (s *Store) Checkout(ctx context.Context, placer Placer) (*Receipt, error) {
	items := s.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order := Order{
		IdempotencyKey: uuid.NewString(),
		Items:          items,
		Total:          total(items),
	}

	receipt, err := placer.PlaceOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("couldn't place order: %w", err)
	}

	if err := s.removeOrdered(ctx, items); err != nil {
		s.logger.Errorf("Order %s was placed but the cart couldn't be updated: %v", receipt.OrderID, err)
	}

	return receipt, nil
}

func (s *Store) removeOrdered(ctx context.Context, ordered []LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	placed := make(map[string]int, len(ordered))
	for _, it := range ordered {
		placed[it.ProductID] = it.Quantity
	}

	kept := make([]LineItem, 0, len(s.items))
	for _, it := range s.items {
		it.Quantity -= placed[it.ProductID]
		if it.Quantity >= 1 {
			kept = append(kept, it)
		}
	}
	s.items = kept

	return s.persist(ctx)
}
