package checkout

import (
	"context"
	"sync"
)

// Launcher opens a callback-style widget. Exactly one of the callbacks is
// expected, but extra calls are ignored.
type Launcher func(req WidgetRequest, onSuccess func(PaymentResult), onDismiss func(error))

type bridgedWidget struct {
	launch Launcher
}

// BridgeWidget turns a callback-style launcher into a Widget whose Open
// settles exactly once.
func BridgeWidget(launch Launcher) Widget {
	return &bridgedWidget{launch: launch}
}

func (w *bridgedWidget) Open(ctx context.Context, req WidgetRequest) (PaymentResult, error) {
	var (
		once   sync.Once
		done   = make(chan struct{})
		result PaymentResult
		err    error
	)

	settle := func(r PaymentResult, e error) {
		once.Do(func() {
			result, err = r, e
			close(done)
		})
	}

	w.launch(req,
		func(r PaymentResult) { settle(r, nil) },
		func(e error) {
			if e == nil {
				e = ErrPaymentDismissed
			}
			settle(PaymentResult{}, e)
		},
	)

	select {
	case <-done:
		return result, err
	case <-ctx.Done():
		settle(PaymentResult{}, ctx.Err())
		<-done
		return result, err
	}
}
