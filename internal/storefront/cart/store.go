// Package cart is the shopper's persisted cart: an ordered list of product
// ids and quantities stored under the "cartItems" key of the local store.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ikkim/quickcart-backend/internal/storefront/localstore"
	"github.com/ikkim/quickcart-backend/pkg/logger"
)

var (
	ErrDuplicateItem   = errors.New("item already in cart")
	ErrInvalidProduct  = errors.New("invalid product id")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Line is one cart entry. A stored line always has Quantity > 0.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Listener receives the full cart after every accepted mutation.
// It must not mutate the store.
type Listener func(lines []Line)

type Store struct {
	backend localstore.Store

	mu       sync.Mutex // guards read-modify-write of the backend value
	notifyMu sync.Mutex // keeps listener calls in write order

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

func NewStore(backend localstore.Store) *Store {
	return &Store{
		backend:   backend,
		listeners: make(map[int]Listener),
	}
}

// NormalizeID trims the id and reports whether it can name a product.
// Empty ids and the "undefined"/"null" leftovers of a broken client are not.
func NormalizeID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	switch id {
	case "", "undefined", "null":
		return "", false
	}
	return id, true
}

// Load returns the validated cart. Any read or parse failure yields an empty cart.
func (s *Store) Load(ctx context.Context) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) []Line {
	data, err := s.backend.Get(ctx, localstore.KeyCartItems)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			logger.Warn("Failed to read cart, starting empty", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return []Line{}
	}
	return decode(data)
}

type storedLine struct {
	ProductID *string  `json:"productId"`
	Quantity  *float64 `json:"quantity"`
}

func decode(data []byte) []Line {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("Stored cart is corrupt, starting empty", map[string]interface{}{
			"error": err.Error(),
		})
		return []Line{}
	}

	lines := make([]Line, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, raw := range entries {
		var entry storedLine
		if err := json.Unmarshal(raw, &entry); err != nil || entry.ProductID == nil || entry.Quantity == nil {
			continue
		}
		id, ok := NormalizeID(*entry.ProductID)
		if !ok || seen[id] {
			continue
		}
		qty := int(*entry.Quantity)
		if qty <= 0 || float64(qty) != *entry.Quantity {
			continue
		}
		seen[id] = true
		lines = append(lines, Line{ProductID: id, Quantity: qty})
	}
	return lines
}

// sanitize applies the same rules as decode to caller supplied lines.
func sanitize(in []Line) []Line {
	out := make([]Line, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, l := range in {
		id, ok := NormalizeID(l.ProductID)
		if !ok || l.Quantity <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Line{ProductID: id, Quantity: l.Quantity})
	}
	return out
}

// Save overwrites the stored cart with lines.
func (s *Store) Save(ctx context.Context, lines []Line) error {
	return s.mutate(ctx, func([]Line) ([]Line, error) {
		return sanitize(lines), nil
	})
}

// AddLine appends a new line. A zero quantity means one; an id already in
// the cart is rejected rather than merged.
func (s *Store) AddLine(ctx context.Context, productID string, quantity int) error {
	id, ok := NormalizeID(productID)
	if !ok {
		return ErrInvalidProduct
	}
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		quantity = 1
	}

	return s.mutate(ctx, func(lines []Line) ([]Line, error) {
		for _, l := range lines {
			if l.ProductID == id {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, id)
			}
		}
		return append(lines, Line{ProductID: id, Quantity: quantity}), nil
	})
}

// SetQuantity sets the quantity of a line, adding it if missing.
// A quantity of zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	id, ok := NormalizeID(productID)
	if !ok {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return s.RemoveLine(ctx, id)
	}

	return s.mutate(ctx, func(lines []Line) ([]Line, error) {
		for i := range lines {
			if lines[i].ProductID == id {
				lines[i].Quantity = quantity
				return lines, nil
			}
		}
		return append(lines, Line{ProductID: id, Quantity: quantity}), nil
	})
}

func (s *Store) RemoveLine(ctx context.Context, productID string) error {
	id, ok := NormalizeID(productID)
	if !ok {
		return nil
	}
	return s.mutate(ctx, func(lines []Line) ([]Line, error) {
		out := lines[:0]
		for _, l := range lines {
			if l.ProductID != id {
				out = append(out, l)
			}
		}
		return out, nil
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Line) ([]Line, error) {
		return []Line{}, nil
	})
}

// OnChange registers a listener and returns a function that removes it.
func (s *Store) OnChange(l Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) mutate(ctx context.Context, fn func([]Line) ([]Line, error)) error {
	s.mu.Lock()

	lines, err := fn(s.load(ctx))
	if err != nil {
		s.mu.Unlock()
		return err
	}

	data, err := json.Marshal(lines)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.backend.Set(ctx, localstore.KeyCartItems, data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save cart: %w", err)
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.notify(lines)
	return nil
}

func (s *Store) notify(lines []Line) {
	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(append([]Line(nil), lines...))
	}
}
