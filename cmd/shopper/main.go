package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ikkim/quickcart-backend/config"
	"github.com/ikkim/quickcart-backend/internal/storefront/apiclient"
	"github.com/ikkim/quickcart-backend/internal/storefront/localstore"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/ikkim/quickcart-backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, closeState, err := openState(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open shopper state", err, map[string]interface{}{
			"backend": cfg.Storefront.Backend,
		})
	}
	defer closeState()

	token := ""
	if raw, err := state.Get(ctx, localstore.KeyToken); err == nil {
		token = string(raw)
	}

	app := &shopper{
		state:  state,
		api:    apiclient.New(cfg.Storefront.APIBaseURL, apiclient.WithToken(token)),
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	if err := app.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openState(ctx context.Context, cfg *config.Config) (localstore.Store, func(), error) {
	switch cfg.Storefront.Backend {
	case "redis":
		client, err := redis.Connect(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return localstore.NewRedis(client, cfg.Storefront.ClientID), func() { client.Close() }, nil
	default:
		store, err := localstore.NewFile(cfg.Storefront.StateDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
