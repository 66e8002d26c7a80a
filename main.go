package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tradesim/api"
	"tradesim/config"
	"tradesim/logger"
	"tradesim/manager"
	"tradesim/market"
)

// 默认的不安全密钥，启动时强制检查替换
const defaultJWTSecret = "your-jwt-secret-key-change-in-production-make-it-long-and-random"

// ConfigFile config.json的结构
type ConfigFile struct {
	APIServerPort  int      `json:"api_server_port"`
	CORSOrigins    []string `json:"cors_origins"`
	JWTSecret      string   `json:"jwt_secret"`
	DatabasePath   string   `json:"database_path"`
	ArchiveDir     string   `json:"archive_dir"`
	LogLevel       string   `json:"log_level"`
	BinanceBaseURL string   `json:"binance_base_url"`
}

// loadConfigFile 从当前目录读取config.json
func loadConfigFile() (*ConfigFile, error) {
	data, err := os.ReadFile("config.json")
	if err != nil {
		return nil, fmt.Errorf("read config.json: %w", err)
	}

	var cfg ConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}

	if cfg.APIServerPort == 0 {
		cfg.APIServerPort = 8080
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "tradesim.db"
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = "runs"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:5173"}
	}
	return &cfg, nil
}

// validateJWTSecret 拒绝默认、过短或空的密钥
func validateJWTSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("JWT secret is empty")
	}
	if secret == defaultJWTSecret {
		return fmt.Errorf("JWT secret is still the default value, generate a random one")
	}
	if len(secret) < 32 {
		return fmt.Errorf("JWT secret too short: need at least 32 chars, got %d", len(secret))
	}
	return nil
}

func main() {
	// .env不存在时忽略，环境变量优先于config.json
	_ = godotenv.Load()

	cfg, err := loadConfigFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if cfg.JWTSecret != "" {
		if err := validateJWTSecret(cfg.JWTSecret); err != nil {
			log.Fatal().Err(err).Msg("insecure JWT secret")
		}
	} else {
		log.Warn().Msg("JWT secret not configured, API authentication disabled")
	}

	db, err := config.NewDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open database")
	}
	defer db.Close()

	archive, err := logger.NewRunArchive(cfg.ArchiveDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ArchiveDir).Msg("failed to create run archive")
	}

	source := market.NewBinanceSource(cfg.BinanceBaseURL)
	mgr := manager.NewRunManager(source, db, archive)

	server := api.NewServer(api.ServerConfig{
		Port:        cfg.APIServerPort,
		CORSOrigins: cfg.CORSOrigins,
		JWTSecret:   cfg.JWTSecret,
	}, mgr, db)

	log.Info().
		Int("port", cfg.APIServerPort).
		Str("db", cfg.DatabasePath).
		Msg("tradesim starting")

	if err := server.Run(); err != nil {
		log.Fatal().Err(err).Msg("api server exited")
	}
}
