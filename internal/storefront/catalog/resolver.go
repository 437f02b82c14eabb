// Package catalog resolves cart product ids into live product data.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ikkim/quickcart-backend/internal/storefront/cart"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
)

var ErrResolutionFailed = errors.New("failed to resolve cart products")

// Product is the live view of a catalog entry. It is never persisted by the cart.
type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	OfferPrice *float64 `json:"offerPrice,omitempty"`
	Image      string   `json:"image"`
	Stock      int      `json:"stock"`
}

// Source fetches products by id in one request.
type Source interface {
	ProductsByIDs(ctx context.Context, ids []string) ([]Product, error)
}

type Resolver struct {
	source Source
	group  singleflight.Group
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the products for ids keyed by id. Ids the catalog does not
// know are simply absent. On failure the map is empty and the error wraps
// ErrResolutionFailed; there is no retry.
func (r *Resolver) Resolve(ctx context.Context, ids []string) (map[string]Product, error) {
	wanted := normalize(ids)
	if len(wanted) == 0 {
		return map[string]Product{}, nil
	}

	key := strings.Join(wanted, ",")
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.source.ProductsByIDs(context.WithoutCancel(ctx), wanted)
	})

	select {
	case <-ctx.Done():
		return map[string]Product{}, fmt.Errorf("%w: %v", ErrResolutionFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			logger.Warn("Product resolution failed", map[string]interface{}{
				"ids":   key,
				"error": res.Err.Error(),
			})
			return map[string]Product{}, fmt.Errorf("%w: %v", ErrResolutionFailed, res.Err)
		}

		want := make(map[string]bool, len(wanted))
		for _, id := range wanted {
			want[id] = true
		}
		products := make(map[string]Product, len(wanted))
		for _, p := range res.Val.([]Product) {
			id := strings.TrimSpace(p.ID)
			if want[id] {
				p.ID = id
				products[id] = p
			}
		}
		return products, nil
	}
}

// normalize returns the valid, distinct ids in sorted order.
func normalize(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, ok := cart.NormalizeID(raw)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
