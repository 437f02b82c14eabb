package cartview

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ikkim/quickcart-backend/internal/storefront/cart"
	"github.com/ikkim/quickcart-backend/internal/storefront/catalog"
)

type Resolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Aggregator keeps a View in step with the cart store. Products are
// refetched only when the set of ids in the cart changes.
type Aggregator struct {
	ctx      context.Context
	store    *cart.Store
	resolver Resolver

	// Every update draws a ticket before it reads the cart. An update whose
	// ticket is older than the last applied one is dropped.
	tickets  atomic.Uint64
	updateMu sync.Mutex // one recompute at a time
	applied  uint64

	mu       sync.RWMutex
	view     View
	idKey    string
	products map[string]catalog.Product
	fetched  bool

	subsMu    sync.Mutex
	subs      map[int]func(View)
	nextID    int
	delivered uint64

	stopListening func()
}

// NewAggregator subscribes to store. ctx bounds the fetches triggered by cart
// changes; call Close to detach.
func NewAggregator(ctx context.Context, store *cart.Store, resolver Resolver) *Aggregator {
	a := &Aggregator{
		ctx:      ctx,
		store:    store,
		resolver: resolver,
		view:     Aggregate(nil, nil),
		products: map[string]catalog.Product{},
		subs:     make(map[int]func(View)),
	}
	a.stopListening = store.OnChange(func(lines []cart.Line) {
		a.update(a.ctx, a.tickets.Add(1), lines, false)
	})
	return a
}

// Refresh reloads the cart and refetches its products. If a cart change is
// applied while the reload is in flight, the view of that change is returned.
func (a *Aggregator) Refresh(ctx context.Context) View {
	ticket := a.tickets.Add(1)
	return a.update(ctx, ticket, a.store.Load(ctx), true)
}

func (a *Aggregator) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

// Subscribe registers fn for every recomputed view and returns its canceller.
// fn runs outside the aggregator's locks and may call Refresh or View. When
// the view came from a cart change, fn runs inside the store's change
// notification, so it must not mutate the cart itself; hand that off to
// another goroutine.
func (a *Aggregator) Subscribe(fn func(View)) func() {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()

	id := a.nextID
	a.nextID++
	a.subs[id] = fn

	return func() {
		a.subsMu.Lock()
		defer a.subsMu.Unlock()
		delete(a.subs, id)
	}
}

func (a *Aggregator) Close() {
	a.stopListening()
}

func (a *Aggregator) update(ctx context.Context, ticket uint64, lines []cart.Line, force bool) View {
	view, ok := a.recompute(ctx, ticket, lines, force)
	if !ok {
		return a.View()
	}
	a.publish(ticket, view)
	return view
}

func (a *Aggregator) recompute(ctx context.Context, ticket uint64, lines []cart.Line, force bool) (View, bool) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()

	if ticket < a.applied {
		return View{}, false
	}
	a.applied = ticket

	key := idKey(lines)

	a.mu.RLock()
	products, resolveErr := a.products, a.view.ResolutionErr
	stale := force || !a.fetched || key != a.idKey
	a.mu.RUnlock()

	if stale {
		ids := make([]string, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		products, resolveErr = a.resolver.Resolve(ctx, ids)
		if products == nil {
			products = map[string]catalog.Product{}
		}
	}

	view := Aggregate(lines, products)
	view.ResolutionErr = resolveErr

	a.mu.Lock()
	a.view = view
	a.idKey = key
	a.products = products
	a.fetched = true
	a.mu.Unlock()
	return view, true
}

// publish hands view to the subscribers unless a newer one already went out.
func (a *Aggregator) publish(ticket uint64, view View) {
	a.subsMu.Lock()
	if ticket < a.delivered {
		a.subsMu.Unlock()
		return
	}
	a.delivered = ticket
	subs := make([]func(View), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.subsMu.Unlock()

	for _, fn := range subs {
		fn(view)
	}
}

func idKey(lines []cart.Line) string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
