package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Grading      GradingConfig
	Gamification GamificationConfig
	Rankings     RankingsConfig
	Recalc       RecalcConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GradingConfig carries the school-tunable grading policy.
type GradingConfig struct {
	MinPassingGrade float64
	MaxScore        float64
	// LetterScale maps minimum scores to letter grades, highest cut first.
	LetterScale []LetterCut
	// FailingLetter is reported for scores below every cut.
	FailingLetter string
}

// LetterCut is one cut point of the letter-grade scale.
type LetterCut struct {
	MinScore float64
	Letter   string
}

// LevelTier names a gamification level.
type LevelTier struct {
	Title string
	Color string
}

// GamificationConfig carries the level schedule and streak policy.
type GamificationConfig struct {
	// XPThresholds[i] is the experience required to advance from level i+1 to i+2.
	XPThresholds []int
	// Tiers[i] describes level i+1. Levels beyond the table reuse the last tier.
	Tiers []LevelTier
}

// ThresholdFor returns the XP required to leave the given 1-based level.
func (g GamificationConfig) ThresholdFor(level int) int {
	if len(g.XPThresholds) == 0 {
		return 0
	}
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(g.XPThresholds) {
		return g.XPThresholds[len(g.XPThresholds)-1]
	}
	return g.XPThresholds[idx]
}

// TierFor returns the title/color for the given 1-based level.
func (g GamificationConfig) TierFor(level int) LevelTier {
	if len(g.Tiers) == 0 {
		return LevelTier{Title: "Beginner", Color: "#9e9e9e"}
	}
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(g.Tiers) {
		idx = len(g.Tiers) - 1
	}
	return g.Tiers[idx]
}

type RankingsConfig struct {
	LockTTL  time.Duration
	CacheTTL time.Duration
}

type RecalcConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	scale, err := parseLetterScale(v.GetString("GRADING_LETTER_SCALE"))
	if err != nil {
		return nil, err
	}
	cfg.Grading = GradingConfig{
		MinPassingGrade: v.GetFloat64("GRADING_MIN_PASSING"),
		MaxScore:        v.GetFloat64("GRADING_MAX_SCORE"),
		LetterScale:     scale,
		FailingLetter:   v.GetString("GRADING_FAILING_LETTER"),
	}
	if cfg.Grading.MinPassingGrade < 0 || cfg.Grading.MinPassingGrade > cfg.Grading.MaxScore {
		return nil, fmt.Errorf("invalid GRADING_MIN_PASSING %v", cfg.Grading.MinPassingGrade)
	}

	thresholds, err := parseIntList(v.GetString("LEVEL_XP_THRESHOLDS"))
	if err != nil {
		return nil, err
	}
	tiers, err := parseTiers(v.GetString("LEVEL_TIERS"))
	if err != nil {
		return nil, err
	}
	cfg.Gamification = GamificationConfig{XPThresholds: thresholds, Tiers: tiers}
	if err := validateThresholds(thresholds); err != nil {
		return nil, err
	}

	cfg.Rankings = RankingsConfig{
		LockTTL:  parseDuration(v.GetString("RANKING_LOCK_TTL"), 2*time.Minute),
		CacheTTL: parseDuration(v.GetString("RANKING_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Recalc = RecalcConfig{
		Workers:    v.GetInt("RECALC_WORKERS"),
		BufferSize: v.GetInt("RECALC_BUFFER_SIZE"),
		MaxRetries: v.GetInt("RECALC_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RECALC_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academia_core")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADING_MIN_PASSING", 6.0)
	v.SetDefault("GRADING_MAX_SCORE", 10.0)
	v.SetDefault("GRADING_LETTER_SCALE", "9:A,8:B,7:C,6:D")
	v.SetDefault("GRADING_FAILING_LETTER", "F")

	v.SetDefault("LEVEL_XP_THRESHOLDS", "100,250,500,900,1500,2300,3300,4500,6000")
	v.SetDefault("LEVEL_TIERS", "Novice:#9e9e9e,Apprentice:#8bc34a,Scholar:#03a9f4,Achiever:#3f51b5,Expert:#9c27b0,Master:#ff9800,Champion:#f44336,Legend:#ffd700")

	v.SetDefault("RANKING_LOCK_TTL", "2m")
	v.SetDefault("RANKING_CACHE_TTL", "5m")

	v.SetDefault("RECALC_WORKERS", 2)
	v.SetDefault("RECALC_BUFFER_SIZE", 64)
	v.SetDefault("RECALC_MAX_RETRIES", 3)
	v.SetDefault("RECALC_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseIntList(raw string) ([]int, error) {
	parts := splitAndTrim(raw)
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse int list entry %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// validateThresholds rejects a level schedule that is not strictly
// increasing. An equal or lower threshold would make a level free.
func validateThresholds(thresholds []int) error {
	for i := range thresholds {
		if thresholds[i] <= 0 {
			return errors.New("LEVEL_XP_THRESHOLDS must be positive")
		}
		if i > 0 && thresholds[i] <= thresholds[i-1] {
			return errors.New("LEVEL_XP_THRESHOLDS must be strictly increasing")
		}
	}
	return nil
}

// parseLetterScale reads "minScore:letter" pairs and orders them highest cut first.
func parseLetterScale(raw string) ([]LetterCut, error) {
	parts := splitAndTrim(raw)
	cuts := make([]LetterCut, 0, len(parts))
	for _, part := range parts {
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid letter scale entry %q", part)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid letter scale entry %q: %w", part, err)
		}
		cuts = append(cuts, LetterCut{MinScore: min, Letter: strings.TrimSpace(fields[1])})
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].MinScore > cuts[j].MinScore })
	return cuts, nil
}

// parseTiers reads "title:color" pairs in level order.
func parseTiers(raw string) ([]LevelTier, error) {
	parts := splitAndTrim(raw)
	tiers := make([]LevelTier, 0, len(parts))
	for _, part := range parts {
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid level tier entry %q", part)
		}
		tiers = append(tiers, LevelTier{Title: strings.TrimSpace(fields[0]), Color: strings.TrimSpace(fields[1])})
	}
	return tiers, nil
}
