package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Node access
	RPCEndpoint       string
	RPCRateLimitRPS   int
	SignaturePageSize int
	MaxTransactions   int

	// Engine thresholds
	MinEventValueSOL    float64
	StitchWindowSeconds int
	CostBasisMethod     string

	// Known counterparty addresses, addr=tag pairs
	KnownAddresses map[string]string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Redis (optional, empty addr disables caching)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// API
	APIPort         int
	APIKey          string
	CORSAllowOrigin string

	// Notifications
	WebhookURL string
	BotName    string

	// Scheduler
	RefreshIntervalHours int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RPCEndpoint:       envStr("SOLANA_RPC_ENDPOINT", ""),
		RPCRateLimitRPS:   envInt("RPC_RATE_LIMIT_RPS", 8),
		SignaturePageSize: envInt("RPC_SIGNATURE_PAGE_SIZE", 200),
		MaxTransactions:   envInt("MAX_TRANSACTIONS", 1000),

		MinEventValueSOL:    envFloat("MIN_EVENT_VALUE_SOL", 0.01),
		StitchWindowSeconds: envInt("STITCH_WINDOW_SECONDS", 10),
		CostBasisMethod:     envStr("COST_BASIS_METHOD", "average"),

		KnownAddresses: parseAddressTags(envStr("REWARD_ADDRESSES", "")),

		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "solscope"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		APIPort:         envInt("API_PORT", 3001),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		WebhookURL: envStr("WEBHOOK_URL", ""),
		BotName:    envStr("BOT_NAME", "SolscopeAnalyzer"),

		RefreshIntervalHours: envInt("REFRESH_INTERVAL_HOURS", 6),
	}

	return cfg, nil
}

// Validate fails fast on configuration that would corrupt downstream totals.
// Soft issues print a warning; hard ones return an error before any
// processing starts.
func (c *Config) Validate() error {
	var errs []string

	if c.RPCEndpoint == "" {
		errs = append(errs, "SOLANA_RPC_ENDPOINT is required")
	}
	if c.MinEventValueSOL < 0 || math.IsNaN(c.MinEventValueSOL) || math.IsInf(c.MinEventValueSOL, 0) {
		errs = append(errs, fmt.Sprintf("MIN_EVENT_VALUE_SOL must be a non-negative finite number, got %v", c.MinEventValueSOL))
	}
	if c.StitchWindowSeconds < 1 || c.StitchWindowSeconds > 300 {
		errs = append(errs, fmt.Sprintf("STITCH_WINDOW_SECONDS must be between 1 and 300, got %d", c.StitchWindowSeconds))
	}
	if c.MaxTransactions < 1 {
		errs = append(errs, fmt.Sprintf("MAX_TRANSACTIONS must be positive, got %d", c.MaxTransactions))
	}

	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set - REST API has no authentication")
	}
	if c.RedisAddr == "" {
		fmt.Println("[WARN] REDIS_ADDR not set - token metadata caching is in-memory only")
	}
	if len(c.KnownAddresses) == 0 {
		fmt.Println("[WARN] REWARD_ADDRESSES not set - inbound rewards will be booked as deposits")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Solscope Wallet Analyzer Configuration ===")
	fmt.Printf("RPC Endpoint: %s\n", truncURL(c.RPCEndpoint))
	fmt.Printf("Rate Limit: %d req/s, page size %d, max %d txs\n",
		c.RPCRateLimitRPS, c.SignaturePageSize, c.MaxTransactions)
	fmt.Println("----------------------------------------------")
	fmt.Println("Engine:")
	fmt.Printf("  Min Event Value: %.4f SOL\n", c.MinEventValueSOL)
	fmt.Printf("  Stitch Window: %ds\n", c.StitchWindowSeconds)
	fmt.Printf("  Cost Basis: %s (presentation only)\n", c.CostBasisMethod)
	fmt.Printf("  Known Addresses: %d\n", len(c.KnownAddresses))
	fmt.Println("----------------------------------------------")
	fmt.Printf("Database: %s:%d/%s\n", c.DBHost, c.DBPort, c.DBName)
	if c.RedisAddr != "" {
		fmt.Printf("Redis: %s (db %d)\n", c.RedisAddr, c.RedisDB)
	}
	fmt.Printf("API Port: %d\n", c.APIPort)
	fmt.Printf("Refresh Interval: every %d hours\n", c.RefreshIntervalHours)
	fmt.Println("==============================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// parseAddressTags parses "addr1=reward,addr2=exchange". A bare address with
// no tag defaults to the reward tag.
func parseAddressTags(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		addr, tag, found := strings.Cut(pair, "=")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if !found || strings.TrimSpace(tag) == "" {
			out[addr] = "reward"
		} else {
			out[addr] = strings.TrimSpace(tag)
		}
	}
	return out
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func truncURL(u string) string {
	if len(u) > 40 {
		return u[:40] + "..."
	}
	return u
}
