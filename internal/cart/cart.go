// Package cart keeps the shopping cart in durable client storage. Every mutation is written
// through, so a restarted client picks up exactly where it left off.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/labstack/gommon/log"

	"github.com/lachlan2k/vitrine/internal/storage"
)

const storageKey = "carrinho"

var ErrCorrupt = errors.New("stored cart couldn't be parsed")

type Product struct {
	ID        string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	PhotoRef  string  `json:"photoRef,omitempty"`
}

type LineItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	PhotoRef  string  `json:"photoRef,omitempty"`
	Quantity  int     `json:"quantity"`
}

func (li LineItem) Subtotal() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

type Store struct {
	backend storage.Backend
	logger  *log.Logger
	perUser bool

	mu    sync.Mutex
	key   string
	items []LineItem
}

// New returns an empty cart bound to the device-wide key. Call Load to pick up what was stored.
// With perUser set, Bind moves the cart to a key of its own per user id.
func New(backend storage.Backend, logger *log.Logger, perUser bool) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
		perUser: perUser,
		key:     storageKey,
	}
}

func KeyFor(userID string) string {
	if userID == "" {
		return storageKey
	}
	return storageKey + ":" + userID
}

// Load replaces the in-memory cart with what storage holds. Missing or unreadable
// content gives an empty cart.
func (s *Store) Load(ctx context.Context) []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = s.read(ctx)
	return s.snapshot()
}

func (s *Store) read(ctx context.Context) []LineItem {
	raw, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Warnf("Couldn't read cart %s, starting empty: %v", s.key, err)
		return nil
	}

	items, err := decode(raw)
	if err != nil {
		s.logger.Warnf("Resetting cart %s: %v", s.key, err)
		return nil
	}
	return items
}

func decode(raw string) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	// Drop anything that breaks the cart's invariants rather than the whole cart
	seen := make(map[string]bool, len(items))
	clean := items[:0]
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		clean = append(clean, it)
	}
	return clean, nil
}

// Bind switches to the cart of the given user (or the anonymous cart for ""). It does
// nothing unless per-user carts are enabled.
func (s *Store) Bind(ctx context.Context, userID string) []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.perUser {
		return s.snapshot()
	}

	s.key = KeyFor(userID)
	s.items = s.read(ctx)
	return s.snapshot()
}

func (s *Store) Add(ctx context.Context, p Product, qty int) error {
	if qty < 1 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(p.ID); i >= 0 {
		s.items[i].Quantity += qty
	} else {
		s.items = append(s.items, LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.UnitPrice,
			PhotoRef:  p.PhotoRef,
			Quantity:  qty,
		})
	}

	return s.persist(ctx)
}

// Remove drops a product from the cart. Removing something that isn't there is fine.
func (s *Store) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]LineItem, 0, len(s.items))
	for _, it := range s.items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	s.items = kept

	return s.persist(ctx)
}

// SetQuantity never takes a line below 1; use Remove for that.
func (s *Store) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return nil
	}
	s.items[i].Quantity = qty

	return s.persist(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.persist(ctx)
}

func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return total(s.items)
}

func total(items []LineItem) float64 {
	sum := 0.0
	for _, it := range items {
		sum += it.Subtotal()
	}
	return sum
}

func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

// Count is the number of units in the cart, not the number of lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

func (s *Store) indexOf(productID string) int {
	for i, it := range s.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) persist(ctx context.Context) error {
	items := s.items
	if items == nil {
		items = []LineItem{}
	}

	buff, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("couldn't encode cart: %w", err)
	}

	if err := s.backend.Set(ctx, s.key, string(buff)); err != nil {
		return fmt.Errorf("couldn't persist cart: %w", err)
	}
	return nil
}
