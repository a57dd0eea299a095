package cart

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lachlan2k/vitrine/internal/storage"
)

var (
	racao   = Product{ID: "p1", Name: "Ração 10kg", UnitPrice: 10, PhotoRef: "racao.jpg"}
	coleira = Product{ID: "p2", Name: "Coleira", UnitPrice: 5}
)

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

func newStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	s := New(mem, quietLogger(), false)
	s.Load(context.Background())
	return s, mem
}

func TestAddSameProductIncrements(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Add(ctx, racao, 1))
	require.NoError(t, s.Add(ctx, racao, 2))

	want := []LineItem{{ProductID: "p1", Name: "Ração 10kg", UnitPrice: 10, PhotoRef: "racao.jpg", Quantity: 3}}
	if diff := cmp.Diff(want, s.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Add(ctx, coleira, 1))
	require.NoError(t, s.Add(ctx, racao, 1))
	require.NoError(t, s.Add(ctx, coleira, 1))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "p1", items[1].ProductID)
	assert.Equal(t, 3, s.Count())
}

func TestAddNonPositiveIsNoop(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)

	require.NoError(t, s.Add(ctx, racao, 0))
	require.NoError(t, s.Add(ctx, racao, -2))

	assert.Empty(t, s.Items())
	_, err := mem.Get(ctx, storageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetQuantityFloor(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Add(ctx, racao, 2))

	require.NoError(t, s.SetQuantity(ctx, "p1", 0))
	require.NoError(t, s.SetQuantity(ctx, "p1", -1))
	assert.Equal(t, 2, s.Items()[0].Quantity)

	require.NoError(t, s.SetQuantity(ctx, "p1", 5))
	assert.Equal(t, 5, s.Items()[0].Quantity)

	require.NoError(t, s.SetQuantity(ctx, "missing", 5))
	assert.Len(t, s.Items(), 1)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Add(ctx, racao, 1))
	require.NoError(t, s.Add(ctx, coleira, 1))

	before := s.Items()
	require.NoError(t, s.Remove(ctx, "nope"))
	if diff := cmp.Diff(before, s.Items()); diff != "" {
		t.Errorf("removing an absent product changed the cart:\n%s", diff)
	}

	require.NoError(t, s.Remove(ctx, "p1"))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)
}

func TestTotal(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	assert.Equal(t, 0.0, s.Total())

	require.NoError(t, s.Add(ctx, racao, 2))
	require.NoError(t, s.Add(ctx, coleira, 1))
	assert.Equal(t, 25.0, s.Total())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	require.NoError(t, s.Add(ctx, racao, 2))

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Items())

	raw, err := mem.Get(ctx, storageKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestLoadAfterRestart(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	first := New(mem, quietLogger(), false)
	first.Load(ctx)
	require.NoError(t, first.Add(ctx, racao, 1))
	require.NoError(t, first.Add(ctx, coleira, 4))

	restarted := New(mem, quietLogger(), false)
	if diff := cmp.Diff(first.Items(), restarted.Load(ctx)); diff != "" {
		t.Errorf("cart didn't survive restart (-want +got):\n%s", diff)
	}
}

func TestLoadCorrupt(t *testing.T) {
	ctx := context.Background()

	for name, raw := range map[string]string{
		"garbage": "{{not json",
		"object":  `{"productId":"p1"}`,
		"null":    "null",
	} {
		t.Run(name, func(t *testing.T) {
			mem := storage.NewMemory()
			require.NoError(t, mem.Set(ctx, storageKey, raw))

			s := New(mem, quietLogger(), false)
			assert.Empty(t, s.Load(ctx))
			assert.Equal(t, 0.0, s.Total())
		})
	}
}

func TestLoadDropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Set(ctx, storageKey, `[
		{"productId":"p1","unitPrice":10,"quantity":1},
		{"productId":"p1","unitPrice":10,"quantity":9},
		{"productId":"p2","unitPrice":5,"quantity":0},
		{"productId":"","unitPrice":5,"quantity":1}
	]`))

	s := New(mem, quietLogger(), false)
	items := s.Load(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

type failingBackend struct {
	storage.Backend
}

func (failingBackend) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestPersistFailureIsReported(t *testing.T) {
	ctx := context.Background()
	s := New(failingBackend{storage.NewMemory()}, quietLogger(), false)
	s.Load(ctx)

	err := s.Add(ctx, racao, 1)
	assert.Error(t, err)
	// the in-memory cart still reflects the call
	assert.Len(t, s.Items(), 1)
}

func TestBindPerUser(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := New(mem, quietLogger(), true)
	s.Load(ctx)

	s.Bind(ctx, "ana")
	require.NoError(t, s.Add(ctx, racao, 1))

	s.Bind(ctx, "bia")
	assert.Empty(t, s.Items())
	require.NoError(t, s.Add(ctx, coleira, 2))

	items := s.Bind(ctx, "ana")
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ProductID)

	_, err := mem.Get(ctx, KeyFor("bia"))
	assert.NoError(t, err)
}

func TestBindSharedCart(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Add(ctx, racao, 1))

	items := s.Bind(ctx, "ana")
	assert.Len(t, items, 1)
	items = s.Bind(ctx, "bia")
	assert.Len(t, items, 1)
}
