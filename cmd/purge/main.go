// Command purge deletes completed orders whose delivered trigger has
// passed and compacts the ledger file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/config"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/db"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/logger"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/metrics"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/purge"
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

	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		log.Info("ledger file not found, nothing to purge", zap.String("path", cfg.DBPath))
		return
	}

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal("ledger open error", zap.Error(err))
	}
	defer database.Close()

	orders := repoSqlite.NewOrderRepo(database)
	purger := purge.New(database, orders, time.Now, cfg.Location, log)

	if err := purger.Run(ctx); err != nil {
		log.Fatal("purge run failed", zap.Error(err))
	}

	if err := metrics.Push(cfg.PushgatewayURL, "ordersim_purge"); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}
	log.Info("purge run finished")
}
