package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"staking-ledger/models"
)

const (
	DriverLevelDB  = "leveldb"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverRedis    = "redis"
)

type Config struct {
	HTTPAddr       string
	AllowedOrigins []string

	Store    Store
	Session  Session
	Admin    Admin
	Snapshot Snapshot
	Log      Log

	Rules Rules
}

type Store struct {
	Driver        string
	LevelDBDir    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type Session struct {
	JWTSecret    string
	TTL          time.Duration
	PollInterval time.Duration
	SweepEvery   time.Duration
	BcryptCost   int
}

type Admin struct {
	Token     string
	Usernames []string
}

type Snapshot struct {
	Interval        time.Duration
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Endpoint        string
}

// Enabled reports whether object storage is configured for snapshots.
func (s Snapshot) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != "" && s.AccessKeySecret != ""
}

type Log struct {
	Level  string
	Format string
}

// Rules are the ledger's business constants.
type Rules struct {
	ReferralBonus       decimal.Decimal
	StakingReward       decimal.Decimal
	StakingMinReferrals int
	StakingMinDeposit   decimal.Decimal
	StakingInterval     time.Duration
	Tiers               []models.ReferralBonusTier
}

// DefaultRules returns the production rule set.
func DefaultRules() Rules {
	tiers := make([]models.ReferralBonusTier, len(models.DefaultReferralBonusTiers))
	copy(tiers, models.DefaultReferralBonusTiers)
	return Rules{
		ReferralBonus:       decimal.NewFromInt(10),
		StakingReward:       decimal.NewFromInt(1),
		StakingMinReferrals: 10,
		StakingMinDeposit:   decimal.NewFromInt(100),
		StakingInterval:     24 * time.Hour,
		Tiers:               tiers,
	}
}

func (r Rules) Validate() error {
	if !r.ReferralBonus.IsPositive() {
		return fmt.Errorf("referral bonus must be positive")
	}
	if !r.StakingReward.IsPositive() {
		return fmt.Errorf("staking reward must be positive")
	}
	if r.StakingMinReferrals <= 0 {
		return fmt.Errorf("staking min referrals must be positive")
	}
	if r.StakingInterval <= 0 {
		return fmt.Errorf("staking interval must be positive")
	}
	last := 0
	for _, t := range r.Tiers {
		if t.Count <= last {
			return fmt.Errorf("referral tiers must be strictly increasing (got %d after %d)", t.Count, last)
		}
		if !t.Bonus.IsPositive() {
			return fmt.Errorf("referral tier %d bonus must be positive", t.Count)
		}
		last = t.Count
	}
	return nil
}

func (cfg *Store) Validate() error {
	switch cfg.Driver {
	case DriverLevelDB:
		if cfg.LevelDBDir == "" {
			return fmt.Errorf("LEVELDB_DIR cannot be empty")
		}
	case DriverPostgres, DriverMySQL:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL cannot be empty for driver %s", cfg.Driver)
		}
	case DriverRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.Driver)
	}
	return nil
}

func (cfg *Session) Validate() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if cfg.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("STAKING_POLL_INTERVAL must be positive")
	}
	if cfg.SweepEvery <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func (cfg *Config) Validate() error {
	if err := cfg.Store.Validate(); err != nil {
		return err
	}
	if err := cfg.Session.Validate(); err != nil {
		return err
	}
	if cfg.Snapshot.Enabled() && cfg.Snapshot.Interval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive")
	}
	return cfg.Rules.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":5200")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("STORE_DRIVER", DriverLevelDB)
	v.SetDefault("LEVELDB_DIR", "./data/ledger")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("STAKING_POLL_INTERVAL", time.Minute)
	v.SetDefault("SESSION_SWEEP_INTERVAL", 5*time.Minute)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("ADMIN_USERNAMES", "admin,admin123,superadmin")
	v.SetDefault("SNAPSHOT_INTERVAL", time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

var envKeys = []string{
	"HTTP_ADDR", "ALLOWED_ORIGINS",
	"STORE_DRIVER", "LEVELDB_DIR", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"JWT_SECRET", "SESSION_TTL", "STAKING_POLL_INTERVAL", "SESSION_SWEEP_INTERVAL", "BCRYPT_COST",
	"ADMIN_TOKEN", "ADMIN_USERNAMES",
	"SNAPSHOT_INTERVAL", "CLOUDFLARE_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_ACCESS_KEY_SECRET", "R2_BUCKET_NAME", "R2_ENDPOINT",
	"LOG_LEVEL", "LOG_FORMAT",
	"REFERRAL_BONUS", "STAKING_REWARD", "STAKING_MIN_REFERRALS", "STAKING_MIN_DEPOSIT", "STAKING_INTERVAL",
}

// Load reads .env (if present), the optional config file and the environment.
// An empty configFile means environment only.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	v := viper.New()
	setDefaults(v)
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, err
		}
	}
	v.AutomaticEnv()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, err
			}
		} else if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("no config file found at %s", configFile)
		} else {
			return Config{}, err
		}
	}

	cfg := Config{
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		Store: Store{
			Driver:        strings.ToLower(v.GetString("STORE_DRIVER")),
			LevelDBDir:    v.GetString("LEVELDB_DIR"),
			DatabaseURL:   v.GetString("DATABASE_URL"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		Session: Session{
			JWTSecret:    v.GetString("JWT_SECRET"),
			TTL:          v.GetDuration("SESSION_TTL"),
			PollInterval: v.GetDuration("STAKING_POLL_INTERVAL"),
			SweepEvery:   v.GetDuration("SESSION_SWEEP_INTERVAL"),
			BcryptCost:   v.GetInt("BCRYPT_COST"),
		},
		Admin: Admin{
			Token:     v.GetString("ADMIN_TOKEN"),
			Usernames: splitList(v.GetString("ADMIN_USERNAMES")),
		},
		Snapshot: Snapshot{
			Interval:        v.GetDuration("SNAPSHOT_INTERVAL"),
			AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
			Bucket:          v.GetString("R2_BUCKET_NAME"),
			Endpoint:        v.GetString("R2_ENDPOINT"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	rules, err := loadRules(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Rules = rules

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadRules overlays any rule set in the environment on DefaultRules.
// The tier table is not configurable from the environment.
func loadRules(v *viper.Viper) (Rules, error) {
	rules := DefaultRules()
	for key, dst := range map[string]*decimal.Decimal{
		"REFERRAL_BONUS":      &rules.ReferralBonus,
		"STAKING_REWARD":      &rules.StakingReward,
		"STAKING_MIN_DEPOSIT": &rules.StakingMinDeposit,
	} {
		if !v.IsSet(key) {
			continue
		}
		d, err := decimal.NewFromString(v.GetString(key))
		if err != nil {
			return Rules{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	if v.IsSet("STAKING_MIN_REFERRALS") {
		rules.StakingMinReferrals = v.GetInt("STAKING_MIN_REFERRALS")
	}
	if v.IsSet("STAKING_INTERVAL") {
		rules.StakingInterval = v.GetDuration("STAKING_INTERVAL")
	}
	return rules, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
