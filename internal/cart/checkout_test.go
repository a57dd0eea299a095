package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlacer struct {
	orders []Order
	err    error
	during func()
}

func (f *fakePlacer) PlaceOrder(_ context.Context, order Order) (*Receipt, error) {
	f.orders = append(f.orders, order)
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Receipt{OrderID: "ord-1"}, nil
}

func TestCheckoutClearsCart(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Add(ctx, racao, 2))
	require.NoError(t, s.Add(ctx, coleira, 1))

	placer := &fakePlacer{}
	receipt, err := s.Checkout(ctx, placer)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", receipt.OrderID)
	assert.Empty(t, s.Items())

	require.Len(t, placer.orders, 1)
	order := placer.orders[0]
	assert.Equal(t, 25.0, order.Total)
	assert.Len(t, order.Items, 2)
	_, err = uuid.Parse(order.IdempotencyKey)
	assert.NoError(t, err)
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Add(ctx, racao, 1))

	_, err := s.Checkout(ctx, &fakePlacer{err: errors.New("estoque insuficiente")})
	assert.Error(t, err)
	assert.Len(t, s.Items(), 1)
}

func TestCheckoutEmptyCart(t *testing.T) {
	s, _ := newStore(t)
	placer := &fakePlacer{}

	_, err := s.Checkout(context.Background(), placer)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, placer.orders)
}

func TestCheckoutKeepsLinesAddedWhileOrdering(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	require.NoError(t, s.Add(ctx, racao, 2))

	placer := &fakePlacer{during: func() {
		require.NoError(t, s.Add(ctx, racao, 1))
		require.NoError(t, s.Add(ctx, coleira, 1))
	}}
	_, err := s.Checkout(ctx, placer)
	require.NoError(t, err)

	require.Len(t, placer.orders, 1)
	assert.Equal(t, 2, placer.orders[0].Items[0].Quantity)

	want := []LineItem{
		{ProductID: "p1", Name: "Ração 10kg", UnitPrice: 10, PhotoRef: "racao.jpg", Quantity: 1},
		{ProductID: "p2", Name: "Coleira", UnitPrice: 5, Quantity: 1},
	}
	if diff := cmp.Diff(want, s.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	raw, err := mem.Get(ctx, storageKey)
	require.NoError(t, err)
	var persisted []LineItem
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	if diff := cmp.Diff(want, persisted); diff != "" {
		t.Errorf("persisted mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckoutDropsLinesRemovedWhileOrdering(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Add(ctx, racao, 1))
	require.NoError(t, s.Add(ctx, coleira, 3))

	placer := &fakePlacer{during: func() {
		require.NoError(t, s.Remove(ctx, "p1"))
		require.NoError(t, s.SetQuantity(ctx, "p2", 2))
	}}
	_, err := s.Checkout(ctx, placer)
	require.NoError(t, err)
	assert.Empty(t, s.Items())
}
