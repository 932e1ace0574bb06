// Package config loads Arbihawk's runtime configuration from the
// environment. CLI argument parsing belongs to the (out-of-scope)
// command wrapper; this package only reads env vars and a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir  string // base directory for the store file and backups
	DBPath   string // path to the single-file store
	LogLevel string
	Port     int

	// Matching
	MatchToleranceHours int
	MinMatchScore       int

	// Betting
	FakeMoneyEnabled    bool
	AutoBetAfterTrain   bool
	EVThresholdDefault  float64
	FixedStake          float64
	LimitPerModel       int
	MaxWorkersLeagues   int
	MaxWorkersPlaywright int

	// Trading
	TradingEnabled  bool
	MinRiskReward   float64
	ATRMultiple     float64
	RiskRewardRatio float64

	// Model versioning
	AutoRollbackEnabled    bool
	RollbackThresholdPct   float64
	RollbackEvaluationBets int
	MaxVersionsToKeep      int

	// Backup
	BackupBucket    string
	BackupRegion    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string

	// Daemon
	DaemonIntervalSeconds        int
	TradingDaemonIntervalSeconds int

	// Maintenance: cron-driven retention sweep, separate from the
	// time.After-driven betting/trading daemon loops.
	MaintenanceCronSpec  string
	RunHistoryRetention  int
	LogSnapshotRetention int

	// Collection targets
	BetanoLeagueIDs       []string
	FlashscoreLeagueSlugs []string
	BettingMarkets        []string

	// Trading targets and sizing
	TradingWatchlistStocks []string
	TradingWatchlistCrypto []string
	TradingStrategy        string
	TradeStakeUSD          float64
	StartingCashUSD        float64

	// External subprocess commands: argv[0] plus fixed flags for each
	// scraper/trainer/predictor collaborator. The scheduler/predictor
	// packages append per-call arguments (league id, fixture id, ...)
	// at invocation time. Empty means the collaborator is disabled.
	ScraperBetanoCmd     string
	ScraperFlashscoreCmd string
	ScraperLivescoreCmd  string
	ScraperStocksCmd     string
	ScraperCryptoCmd     string
	TrainerCmd           string
	PredictorBettingCmd  string
	PredictorTradingCmd  string
}

// Load reads configuration from the environment (and a .env file, if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:  getEnv("ARBIHAWK_DATA_DIR", "./data"),
		DBPath:   getEnv("ARBIHAWK_DB_PATH", "./data/arbihawk.db"),
		LogLevel: getEnv("ARBIHAWK_LOG_LEVEL", "info"),
		Port:     getEnvAsInt("ARBIHAWK_PORT", 8090),

		MatchToleranceHours: getEnvAsInt("ARBIHAWK_MATCH_TOLERANCE_HOURS", 24),
		MinMatchScore:       getEnvAsInt("ARBIHAWK_MIN_MATCH_SCORE", 75),

		FakeMoneyEnabled:     getEnvAsBool("ARBIHAWK_FAKE_MONEY_ENABLED", true),
		AutoBetAfterTrain:    getEnvAsBool("ARBIHAWK_AUTO_BET_AFTER_TRAIN", true),
		EVThresholdDefault:   getEnvAsFloat("ARBIHAWK_EV_THRESHOLD", 0.05),
		FixedStake:           getEnvAsFloat("ARBIHAWK_FIXED_STAKE", 10.0),
		LimitPerModel:        getEnvAsInt("ARBIHAWK_LIMIT_PER_MODEL", 10),
		MaxWorkersLeagues:    getEnvAsInt("ARBIHAWK_MAX_WORKERS_LEAGUES", 8),
		MaxWorkersPlaywright: getEnvAsInt("ARBIHAWK_MAX_WORKERS_PLAYWRIGHT", 3),

		TradingEnabled:  getEnvAsBool("ARBIHAWK_TRADING_ENABLED", true),
		MinRiskReward:   getEnvAsFloat("ARBIHAWK_MIN_RISK_REWARD", 1.5),
		ATRMultiple:     getEnvAsFloat("ARBIHAWK_ATR_MULTIPLE", 2.0),
		RiskRewardRatio: getEnvAsFloat("ARBIHAWK_RISK_REWARD_RATIO", 2.0),

		AutoRollbackEnabled:    getEnvAsBool("ARBIHAWK_AUTO_ROLLBACK_ENABLED", true),
		RollbackThresholdPct:   getEnvAsFloat("ARBIHAWK_ROLLBACK_THRESHOLD_PCT", -10.0),
		RollbackEvaluationBets: getEnvAsInt("ARBIHAWK_ROLLBACK_EVAL_BETS", 50),
		MaxVersionsToKeep:      getEnvAsInt("ARBIHAWK_MAX_VERSIONS_TO_KEEP", 10),

		BackupBucket:    getEnv("ARBIHAWK_BACKUP_BUCKET", ""),
		BackupRegion:    getEnv("ARBIHAWK_BACKUP_REGION", "auto"),
		BackupEndpoint:  getEnv("ARBIHAWK_BACKUP_ENDPOINT", ""),
		BackupAccessKey: getEnv("ARBIHAWK_BACKUP_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("ARBIHAWK_BACKUP_SECRET_KEY", ""),

		DaemonIntervalSeconds:        getEnvAsInt("ARBIHAWK_DAEMON_INTERVAL_SECONDS", 3600),
		TradingDaemonIntervalSeconds: getEnvAsInt("ARBIHAWK_TRADING_DAEMON_INTERVAL_SECONDS", 900),

		MaintenanceCronSpec:  getEnv("ARBIHAWK_MAINTENANCE_CRON_SPEC", "@every 1h"),
		RunHistoryRetention:  getEnvAsInt("ARBIHAWK_RUN_HISTORY_RETENTION", 500),
		LogSnapshotRetention: getEnvAsInt("ARBIHAWK_LOG_SNAPSHOT_RETENTION", 168),

		BetanoLeagueIDs:       getEnvAsStringSlice("ARBIHAWK_BETANO_LEAGUE_IDS", nil),
		FlashscoreLeagueSlugs: getEnvAsStringSlice("ARBIHAWK_FLASHSCORE_LEAGUE_SLUGS", nil),
		BettingMarkets:        getEnvAsStringSlice("ARBIHAWK_BETTING_MARKETS", []string{"1x2", "over_under", "btts"}),

		TradingWatchlistStocks: getEnvAsStringSlice("ARBIHAWK_TRADING_STOCKS", nil),
		TradingWatchlistCrypto: getEnvAsStringSlice("ARBIHAWK_TRADING_CRYPTO", nil),
		TradingStrategy:        getEnv("ARBIHAWK_TRADING_STRATEGY", "momentum"),
		TradeStakeUSD:          getEnvAsFloat("ARBIHAWK_TRADE_STAKE_USD", 100.0),
		StartingCashUSD:        getEnvAsFloat("ARBIHAWK_STARTING_CASH_USD", 10000.0),

		ScraperBetanoCmd:     getEnv("ARBIHAWK_SCRAPER_BETANO_CMD", ""),
		ScraperFlashscoreCmd: getEnv("ARBIHAWK_SCRAPER_FLASHSCORE_CMD", ""),
		ScraperLivescoreCmd:  getEnv("ARBIHAWK_SCRAPER_LIVESCORE_CMD", ""),
		ScraperStocksCmd:     getEnv("ARBIHAWK_SCRAPER_STOCKS_CMD", ""),
		ScraperCryptoCmd:     getEnv("ARBIHAWK_SCRAPER_CRYPTO_CMD", ""),
		TrainerCmd:           getEnv("ARBIHAWK_TRAINER_CMD", ""),
		PredictorBettingCmd:  getEnv("ARBIHAWK_PREDICTOR_BETTING_CMD", ""),
		PredictorTradingCmd:  getEnv("ARBIHAWK_PREDICTOR_TRADING_CMD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("ARBIHAWK_DB_PATH is required")
	}
	if c.MatchToleranceHours <= 0 {
		return fmt.Errorf("ARBIHAWK_MATCH_TOLERANCE_HOURS must be positive")
	}
	return nil
}

// DaemonInterval returns the collection/betting daemon loop interval.
func (c *Config) DaemonInterval() time.Duration {
	return time.Duration(c.DaemonIntervalSeconds) * time.Second
}

// TradingDaemonInterval returns the trading daemon loop interval.
func (c *Config) TradingDaemonInterval() time.Duration {
	return time.Duration(c.TradingDaemonIntervalSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsStringSlice reads a comma-separated env var into a trimmed
// slice, or returns defaultValue if unset/empty.
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
