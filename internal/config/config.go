package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/carrier"
)

const (
	defaultAPIBaseURL   = "https://api.intelipost.com.br/api/v1"
	defaultCEPLookupURL = "https://brasilapi.com.br/api/cep/v1"
	defaultTimezone     = "America/Sao_Paulo"
	defaultAuditTopic   = "order-audit"
	defaultOrderCount   = 250
)

type Config struct {
	DBPath           string
	APIKey           string
	APIBaseURL       string
	CEPLookupURL     string
	Location         *time.Location
	CarrierKeys      map[string]string
	KafkaBrokers     []string
	AuditTopic       string
	PushgatewayURL   string
	CreateOrderCount int
}

func loadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("Loaded environment variables from %s", envPath)
			return
		}
	}
}

// Load reads and validates the full configuration surface. Any missing
// required value aborts the caller before work starts.
func Load() (*Config, error) {
	loadEnv()

	cfg := &Config{
		DBPath:         os.Getenv("DB_FILE_PATH"),
		APIKey:         os.Getenv("INTELIPOST_API_KEY"),
		APIBaseURL:     envOr("INTELIPOST_API_URL", defaultAPIBaseURL),
		CEPLookupURL:   envOr("CEP_LOOKUP_API_URL", defaultCEPLookupURL),
		AuditTopic:     envOr("AUDIT_TOPIC", defaultAuditTopic),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("environment variable DB_FILE_PATH must be set")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("environment variable INTELIPOST_API_KEY must be set")
	}

	cfg.CarrierKeys = make(map[string]string)
	for _, id := range carrier.IDs() {
		envName := fmt.Sprintf("CARRIER_%s_API_KEY", id)
		key := os.Getenv(envName)
		if key == "" {
			return nil, fmt.Errorf("environment variable %s must be set", envName)
		}
		cfg.CarrierKeys[id] = key
	}

	loc, err := time.LoadLocation(envOr("SIM_TIMEZONE", defaultTimezone))
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.CreateOrderCount = defaultOrderCount
	if raw := os.Getenv("CREATE_ORDER_COUNT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CREATE_ORDER_COUNT %q", raw)
		}
		cfg.CreateOrderCount = n
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
