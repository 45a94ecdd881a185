// Command create quotes and submits a batch of new simulated shipment
// orders and records them in the ledger as CREATED.
package main

import (
	"context"
	"errors"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/cep"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/config"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/creator"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/db"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/intelipost"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/logger"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/metrics"
	repoSqlite "github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logger.New()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("configuration error", zap.Error(err))
	}

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal("ledger open error", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatal("ledger bootstrap error", zap.Error(err))
	}

	orders := repoSqlite.NewOrderRepo(database)
	client := intelipost.NewClient(cfg.APIBaseURL, cfg.APIKey)
	addresses := cep.NewClient(cfg.CEPLookupURL)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	run := creator.New(client, addresses, orders, rnd, time.Now, cfg.Location, log)
	if err := run.Run(ctx, cfg.CreateOrderCount); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("creation run failed", zap.Error(err))
	}

	if err := metrics.Push(cfg.PushgatewayURL, "ordersim_create"); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}
}
