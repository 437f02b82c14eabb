// Package cartview joins the persisted cart with live catalog data into the
// priced view the shopper sees.
package cartview

import (
	"github.com/ikkim/quickcart-backend/internal/storefront/cart"
	"github.com/ikkim/quickcart-backend/internal/storefront/catalog"
	"github.com/shopspring/decimal"
)

type LineView struct {
	ProductID string
	Quantity  int
	Product   *catalog.Product // nil when the catalog did not return the id
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

func (l LineView) Resolved() bool {
	return l.Product != nil
}

type View struct {
	Lines     []LineView
	Total     decimal.Decimal
	ItemCount int

	// ResolutionErr is set when product data could not be fetched; the
	// lines are still present, priced at zero.
	ResolutionErr error
}

func (v View) Empty() bool {
	return len(v.Lines) == 0
}

// EffectivePrice is the offer price when there is one, the list price otherwise.
func EffectivePrice(p catalog.Product) decimal.Decimal {
	if p.OfferPrice != nil {
		return decimal.NewFromFloat(*p.OfferPrice)
	}
	return decimal.NewFromFloat(p.Price)
}

// Aggregate prices lines against products. It does not modify its inputs.
func Aggregate(lines []cart.Line, products map[string]catalog.Product) View {
	view := View{
		Lines: make([]LineView, 0, len(lines)),
		Total: decimal.Zero,
	}

	for _, l := range lines {
		lv := LineView{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: decimal.Zero,
			Subtotal:  decimal.Zero,
		}
		if p, ok := products[l.ProductID]; ok {
			p := p
			lv.Product = &p
			lv.UnitPrice = EffectivePrice(p)
			lv.Subtotal = lv.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		}

		view.Lines = append(view.Lines, lv)
		view.Total = view.Total.Add(lv.Subtotal)
		view.ItemCount += l.Quantity
	}
	return view
}
