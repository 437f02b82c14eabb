package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ikkim/quickcart-backend/internal/storefront/apiclient"
	"github.com/ikkim/quickcart-backend/internal/storefront/cart"
	"github.com/ikkim/quickcart-backend/internal/storefront/cartview"
	"github.com/ikkim/quickcart-backend/internal/storefront/catalog"
	"github.com/ikkim/quickcart-backend/internal/storefront/checkout"
	"github.com/ikkim/quickcart-backend/internal/storefront/localstore"
)

const usage = `Usage: shopper <command> [args]

Commands:
  cart                          show the cart with live prices
  add <productId> [quantity]    add a product (quantity defaults to 1)
  set <productId> <quantity>    set a quantity, 0 removes the line
  remove <productId>            remove a product
  clear                         empty the cart
  login <email> <password>      sign in and remember the token
  checkout [flags]              place an order (see checkout -h)`

type shopper struct {
	state  localstore.Store
	api    *apiclient.Client
	stdin  io.Reader
	stdout io.Writer
}

func (s *shopper) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(s.stdout, usage)
		return nil
	}

	store := cart.NewStore(s.state)
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "cart":
		return s.showCart(ctx, store)
	case "add":
		if len(rest) < 1 {
			return errors.New("usage: add <productId> [quantity]")
		}
		qty := 0
		if len(rest) > 1 {
			n, err := strconv.Atoi(rest[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", rest[1])
			}
			qty = n
		}
		if err := store.AddLine(ctx, rest[0], qty); err != nil {
			return err
		}
		return s.showCart(ctx, store)
	case "set":
		if len(rest) != 2 {
			return errors.New("usage: set <productId> <quantity>")
		}
		qty, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", rest[1])
		}
		if err := store.SetQuantity(ctx, rest[0], qty); err != nil {
			return err
		}
		return s.showCart(ctx, store)
	case "remove":
		if len(rest) != 1 {
			return errors.New("usage: remove <productId>")
		}
		if err := store.RemoveLine(ctx, rest[0]); err != nil {
			return err
		}
		return s.showCart(ctx, store)
	case "clear":
		return store.Clear(ctx)
	case "login":
		if len(rest) != 2 {
			return errors.New("usage: login <email> <password>")
		}
		return s.login(ctx, rest[0], rest[1])
	case "checkout":
		return s.checkout(ctx, store, rest)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func (s *shopper) aggregate(ctx context.Context, store *cart.Store) (cartview.View, func()) {
	agg := cartview.NewAggregator(ctx, store, catalog.NewResolver(s.api))
	return agg.Refresh(ctx), agg.Close
}

func (s *shopper) showCart(ctx context.Context, store *cart.Store) error {
	view, done := s.aggregate(ctx, store)
	defer done()
	printView(s.stdout, view)
	return nil
}

func printView(out io.Writer, view cartview.View) {
	if view.Empty() {
		fmt.Fprintln(out, "Cart is empty.")
		return
	}
	if view.ResolutionErr != nil {
		fmt.Fprintln(out, "warning: prices unavailable:", view.ResolutionErr)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range view.Lines {
		name := "(unavailable)"
		if l.Resolved() {
			name = l.Product.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.ProductID, name, l.Quantity, l.UnitPrice.StringFixed(2), l.Subtotal.StringFixed(2))
	}
	tw.Flush()
	fmt.Fprintf(out, "Items: %d  Total: %s\n", view.ItemCount, view.Total.StringFixed(2))
}

func (s *shopper) login(ctx context.Context, email, password string) error {
	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	user, err := json.Marshal(result.User)
	if err != nil {
		return err
	}
	if err := s.state.Set(ctx, localstore.KeyUser, user); err != nil {
		return err
	}
	if err := s.state.Set(ctx, localstore.KeyToken, []byte(result.Tokens.AccessToken)); err != nil {
		return err
	}
	fmt.Fprintf(s.stdout, "Signed in as %s\n", result.User.Email)
	return nil
}

// savedUser is the profile remembered by login, if any.
func (s *shopper) savedUser(ctx context.Context) *apiclient.User {
	raw, err := s.state.Get(ctx, localstore.KeyUser)
	if err != nil {
		return nil
	}
	var u apiclient.User
	if json.Unmarshal(raw, &u) != nil {
		return nil
	}
	return &u
}

func (s *shopper) checkout(ctx context.Context, store *cart.Store, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(s.stdout)
	var form checkout.Form
	mode := fs.String("mode", string(checkout.ModeCOD), "payment mode: cod or online")
	fs.StringVar(&form.Name, "name", "", "full name")
	fs.StringVar(&form.Email, "email", "", "email address")
	fs.StringVar(&form.Address, "address", "", "street address")
	fs.StringVar(&form.City, "city", "", "city")
	fs.StringVar(&form.PostalCode, "postal-code", "", "postal code")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	form.PaymentMode = checkout.PaymentMode(*mode)

	agg := cartview.NewAggregator(ctx, store, catalog.NewResolver(s.api))
	defer agg.Close()

	session, err := checkout.Begin(ctx, agg, checkout.Deps{
		Gateway: s.api,
		Orders:  s.api,
		Widget:  stdinWidget(s.stdin, s.stdout),
		Cart:    store,
	})
	printView(s.stdout, agg.View())
	if err != nil {
		return err
	}

	s.prefill(ctx, &form)

	receipt, err := session.Submit(ctx, form)
	if err != nil {
		var fe *checkout.FieldError
		if errors.As(err, &fe) {
			return fmt.Errorf("please check %s", fe.Error())
		}
		return err
	}
	fmt.Fprintf(s.stdout, "Order placed: %s\n", receipt.OrderID)
	return nil
}

// prefill fills empty form fields from the signed-in user's profile.
func (s *shopper) prefill(ctx context.Context, form *checkout.Form) {
	user := s.savedUser(ctx)
	if user == nil {
		return
	}
	if form.Email == "" {
		form.Email = user.Email
	}
	if profile, err := s.api.ProfileByEmail(ctx, form.Email); err == nil {
		user = profile
	}

	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	fill(&form.Name, user.Name)
	fill(&form.Address, user.Address)
	fill(&form.City, user.City)
	fill(&form.PostalCode, user.PostalCode)
	fill(&form.Phone, user.Phone)
}

// stdinWidget prints the payment request and reads the widget's JSON result
// from one line of in. An empty line dismisses the payment.
func stdinWidget(in io.Reader, out io.Writer) checkout.Widget {
	reader := bufio.NewReader(in)
	return checkout.BridgeWidget(func(req checkout.WidgetRequest, onSuccess func(checkout.PaymentResult), onDismiss func(error)) {
		payload, _ := json.Marshal(map[string]interface{}{
			"key":      req.KeyID,
			"order_id": req.OrderID,
			"amount":   req.Amount,
			"currency": req.Currency,
			"prefill": map[string]string{
				"name":    req.Name,
				"email":   req.Email,
				"contact": req.Phone,
			},
		})
		fmt.Fprintf(out, "Complete the payment, then paste the widget response:\n%s\n", payload)

		go func() {
			line, err := reader.ReadString('\n')
			if strings.TrimSpace(line) == "" {
				if err == nil {
					err = checkout.ErrPaymentDismissed
				}
				onDismiss(err)
				return
			}
			var result checkout.PaymentResult
			if err := json.Unmarshal([]byte(line), &result); err != nil {
				onDismiss(fmt.Errorf("%w: unreadable widget response", checkout.ErrPaymentDismissed))
				return
			}
			onSuccess(result)
		}()
	})
}
