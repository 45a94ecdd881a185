// Command advance runs one full status-advancement pass: collector,
// late-delivery quota, transition engine, in that order, then exits. It
// is meant to run on an external schedule, one invocation at a time.
package main

import (
	"context"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/audit"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/carrier"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/collector"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/config"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/db"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/engine"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/intelipost"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/logger"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/metrics"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/quota"
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

	carriers, err := carrier.NewTable(cfg.CarrierKeys)
	if err != nil {
		log.Fatal("carrier configuration error", zap.Error(err))
	}

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal("ledger open error", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatal("ledger bootstrap error", zap.Error(err))
	}

	auditPub := audit.New(cfg.KafkaBrokers, cfg.AuditTopic, log)
	defer func() { _ = auditPub.Close() }()

	orders := repoSqlite.NewOrderRepo(database)
	outbox := repoSqlite.NewOutboxRepo(database)
	client := intelipost.NewClient(cfg.APIBaseURL, cfg.APIKey)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	col := collector.New(orders, client, rnd, time.Now, log, auditPub)
	ctrl := quota.New(orders, rnd, time.Now, log, auditPub)
	eng := engine.New(database, orders, outbox, client, carriers, time.Now, cfg.Location, log, auditPub)

	failed := false
	if err := col.Run(ctx); err != nil {
		failed = true
		log.Error("collector pass failed", zap.Error(err))
	}
	if err := ctrl.Run(ctx); err != nil {
		failed = true
		log.Error("quota pass failed", zap.Error(err))
	}
	if err := eng.Run(ctx); err != nil {
		failed = true
		log.Error("engine pass failed", zap.Error(err))
	}

	if err := metrics.Push(cfg.PushgatewayURL, "ordersim_advance"); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}

	if failed {
		log.Fatal("advance run finished with failures")
	}
	log.Info("advance run finished")
}
