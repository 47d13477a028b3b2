package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/engine/ttum"
)

// Config holds all runtime configuration derived from environment variables.
type Config struct {
	HTTPPort           string
	DatabaseURL        string
	RedisURL           string
	LogLevel           string
	PublicRateLimitRPS int

	Tolerance      domain.Tolerance
	CutoffWindow   time.Duration
	MatchWorkers   int
	SweepInterval  time.Duration
	RunLockTTL     time.Duration
	Accounts       ttum.Accounts
}

// Load reads environment variables using viper and returns a typed config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "port", "PORT", "RECON_PORT")
	bindEnv(v, "database_url", "DATABASE_URL", "RECON_DATABASE_URL")
	bindEnv(v, "redis_url", "REDIS_URL", "RECON_REDIS_URL")
	bindEnv(v, "log_level", "LOG_LEVEL", "RECON_LOG_LEVEL")
	bindEnv(v, "public_rate_limit_rps", "PUBLIC_RATE_LIMIT_RPS", "RECON_PUBLIC_RATE_LIMIT_RPS")
	bindEnv(v, "tolerance_paise", "TOLERANCE_PAISE", "RECON_TOLERANCE_PAISE")
	bindEnv(v, "tolerance_percent", "TOLERANCE_PERCENT", "RECON_TOLERANCE_PERCENT")
	bindEnv(v, "cutoff_window", "CUTOFF_WINDOW", "RECON_CUTOFF_WINDOW")
	bindEnv(v, "match_workers", "MATCH_WORKERS", "RECON_MATCH_WORKERS")
	bindEnv(v, "sweep_interval", "SWEEP_INTERVAL", "RECON_SWEEP_INTERVAL")
	bindEnv(v, "run_lock_ttl", "RUN_LOCK_TTL", "RECON_RUN_LOCK_TTL")
	bindEnv(v, "gl_npci_settlement", "GL_NPCI_SETTLEMENT", "RECON_GL_NPCI_SETTLEMENT")
	bindEnv(v, "gl_payable", "GL_PAYABLE", "RECON_GL_PAYABLE")
	bindEnv(v, "gl_receivable", "GL_RECEIVABLE", "RECON_GL_RECEIVABLE")

	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("public_rate_limit_rps", 20)
	v.SetDefault("tolerance_paise", 0)
	v.SetDefault("tolerance_percent", "0")
	v.SetDefault("cutoff_window", "24h")
	v.SetDefault("match_workers", 4)
	v.SetDefault("sweep_interval", "15m")
	v.SetDefault("run_lock_ttl", "10m")
	v.SetDefault("gl_npci_settlement", "")
	v.SetDefault("gl_payable", "")
	v.SetDefault("gl_receivable", "")

	cutoff, err := time.ParseDuration(v.GetString("cutoff_window"))
	if err != nil {
		return nil, fmt.Errorf("invalid CUTOFF_WINDOW: %w", err)
	}
	sweep, err := time.ParseDuration(v.GetString("sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	lockTTL, err := time.ParseDuration(v.GetString("run_lock_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_LOCK_TTL: %w", err)
	}
	pct, err := decimal.NewFromString(v.GetString("tolerance_percent"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOLERANCE_PERCENT: %w", err)
	}
	if pct.IsNegative() {
		return nil, fmt.Errorf("TOLERANCE_PERCENT must not be negative")
	}
	tolPaise := v.GetInt64("tolerance_paise")
	if tolPaise < 0 {
		return nil, fmt.Errorf("TOLERANCE_PAISE must not be negative")
	}

	cfg := &Config{
		HTTPPort:           v.GetString("port"),
		DatabaseURL:        v.GetString("database_url"),
		RedisURL:           v.GetString("redis_url"),
		LogLevel:           v.GetString("log_level"),
		PublicRateLimitRPS: max(v.GetInt("public_rate_limit_rps"), 1),
		Tolerance:          domain.Tolerance{AbsolutePaise: tolPaise, Percent: pct},
		CutoffWindow:       cutoff,
		MatchWorkers:       max(v.GetInt("match_workers"), 1),
		SweepInterval:      sweep,
		RunLockTTL:         lockTTL,
		Accounts: ttum.Accounts{
			NPCISettlement: v.GetString("gl_npci_settlement"),
			Payable:        v.GetString("gl_payable"),
			Receivable:     v.GetString("gl_receivable"),
		},
	}

	return cfg, nil
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
