// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/taiyo/mailer"
	"github.com/danielhkuo/taiyo/policy"
	"github.com/danielhkuo/taiyo/shop"
)

const defaultChangelogURL = "https://studio.code.org/v3/sources/3-aKHy16Y5XaAPXQHI95RnFOKlyYT2O95ia2HN2jKIs/main.json"

type Config struct {
	Port        int
	DatabaseURL string

	// PublicHost and PublicPort build the asset URLs handed to clients
	// unless OverrideHost is set.
	PublicHost   string
	PublicPort   int
	OverrideHost string
	CertFile     string
	KeyFile      string

	ModelDate    string
	TuneFileDate string
	SkinDate     string

	StagePrice         int
	AvatarPrice        int
	ItemPrice          int
	FMaxPrice          int
	ExtraPrice         int
	CoinReward         int
	StartCoin          int
	SimultaneousLogins int

	AuthorizationNeeded       bool
	AuthorizationMode         int
	GrandfatheredAccountLimit int64
	DailyDownloadLimit        int64

	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	DiscordBotSecret string
	BindSalt         string

	SaveExportCooldown time.Duration
	BatchEnabled       bool
	ThreadCount        int

	FilesDir     string
	SaveDir      string
	ManifestDir  string
	NoticePath   string
	CatalogPath  string
	VersionFile  string
	ChangelogURL string
	RedisURL     string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// ParseFlags reads the configuration from args, falling back to the
// environment and then to defaults. A .env file in the working directory
// (or the one named by ENV_FILE) is loaded first; it never overrides
// variables already set.
func ParseFlags(args []string) (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	var cfg Config
	env := &envReader{}
	fs := flag.NewFlagSet("taiyo", flag.ContinueOnError)

	// Network
	fs.IntVar(&cfg.Port, "p", env.Int("PORT", 9068), "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", os.Getenv("DATABASE_URL"), "Database URL")
	fs.StringVar(&cfg.PublicHost, "host", env.String("HOST", "127.0.0.1"), "Public host used in asset URLs")
	fs.IntVar(&cfg.PublicPort, "public-port", env.Int("PUBLIC_PORT", 0), "Public port used in asset URLs (default: -p)")
	fs.StringVar(&cfg.OverrideHost, "override-host", os.Getenv("OVERRIDE_HOST"), "Full base URL replacing host and port")
	fs.StringVar(&cfg.CertFile, "cert", os.Getenv("SSL_CERT"), "TLS certificate file")
	fs.StringVar(&cfg.KeyFile, "key", os.Getenv("SSL_KEY"), "TLS key file")

	// Content packs
	fs.StringVar(&cfg.ModelDate, "model", env.String("MODEL", "202504125800"), "Model pak date")
	fs.StringVar(&cfg.TuneFileDate, "tunefile", env.String("TUNEFILE", "202507315817"), "Tune file pak date")
	fs.StringVar(&cfg.SkinDate, "skin", env.String("SKIN", "202404191149"), "Skin pak date")

	// Economy
	fs.IntVar(&cfg.StagePrice, "stage-price", env.Int("STAGE_PRICE", 1), "Stage price")
	fs.IntVar(&cfg.AvatarPrice, "avatar-price", env.Int("AVATAR_PRICE", 1), "Avatar price")
	fs.IntVar(&cfg.ItemPrice, "item-price", env.Int("ITEM_PRICE", 2), "Item price")
	fs.IntVar(&cfg.FMaxPrice, "fmax-price", env.Int("FMAX_PRICE", 300), "FMAX pack price")
	fs.IntVar(&cfg.ExtraPrice, "extra-price", env.Int("EX_PRICE", 150), "EXTRA pack price")
	fs.IntVar(&cfg.CoinReward, "coin-reward", env.Int("COIN_REWARD", 1), "Coins per played result")
	fs.IntVar(&cfg.StartCoin, "start-coin", env.Int("START_COIN", 10), "Coins of a new device")
	fs.IntVar(&cfg.SimultaneousLogins, "logins", env.Int("SIMULTANEOUS_LOGINS", 2), "Devices an account may be logged in on")

	// Authorization
	fs.BoolVar(&cfg.AuthorizationNeeded, "auth", env.Bool("AUTHORIZATION_NEEDED", false), "Serve whitelisted players only")
	fs.IntVar(&cfg.AuthorizationMode, "auth-mode", env.Int("AUTHORIZATION_MODE", 0), "Bind mode: 0 none, 1 email, 2 discord")
	fs.Int64Var(&cfg.GrandfatheredAccountLimit, "grandfathered", env.Int64("GRANDFATHERED_ACCOUNT_LIMIT", 0), "Accounts below this id keep web access without a bind")
	fs.Int64Var(&cfg.DailyDownloadLimit, "download-limit", env.Int64("DAILY_DOWNLOAD_LIMIT", 1<<30), "Bytes a bound account may download per day")

	// Binds (prefer env for secrets)
	fs.StringVar(&cfg.SMTPHost, "smtp-host", os.Getenv("SMTP_HOST"), "SMTP host")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", env.Int("SMTP_PORT", 465), "SMTP port")
	fs.StringVar(&cfg.SMTPUser, "smtp-user", os.Getenv("SMTP_USER"), "SMTP user and sender address")
	fs.StringVar(&cfg.SMTPPassword, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password (prefer env)")
	fs.StringVar(&cfg.DiscordBotSecret, "bot-secret", os.Getenv("DISCORD_BOT_SECRET"), "Discord bot shared secret (prefer env)")
	fs.StringVar(&cfg.BindSalt, "bind-salt", os.Getenv("BIND_SALT"), "Discord bind code salt (prefer env)")

	// Web console and batch downloads
	fs.DurationVar(&cfg.SaveExportCooldown, "export-cooldown", env.Duration("SAVE_EXPORT_COOLDOWN", 24*time.Hour), "Time between data exports")
	fs.BoolVar(&cfg.BatchEnabled, "batch", env.Bool("BATCH_DOWNLOAD_ENABLED", true), "Enable batch download manifests")
	fs.IntVar(&cfg.ThreadCount, "threads", env.Int("THREAD_COUNT", 3), "Download threads suggested to batch clients")

	// Paths
	fs.StringVar(&cfg.FilesDir, "files", env.String("FILES_DIR", "files"), "Asset directory")
	fs.StringVar(&cfg.SaveDir, "saves", env.String("SAVE_DIR", "save"), "Save file directory")
	fs.StringVar(&cfg.ManifestDir, "manifests", env.String("MANIFEST_DIR", "config"), "Batch manifest directory")
	fs.StringVar(&cfg.NoticePath, "notice", env.String("NOTICE_PATH", "files/notice.xml"), "Maintenance notice document")
	fs.StringVar(&cfg.CatalogPath, "catalog", os.Getenv("CATALOG_PATH"), "Game catalog YAML (default: embedded)")
	fs.StringVar(&cfg.VersionFile, "version-file", env.String("VERSION_FILE", "files/4max_ver.txt"), "FMAX release version file")
	fs.StringVar(&cfg.ChangelogURL, "changelog-url", env.String("CHANGELOG_URL", defaultChangelogURL), "FMAX changelog feed")
	fs.StringVar(&cfg.RedisURL, "redis", os.Getenv("REDIS_URL"), "Redis URL for the ranking cache (default: in memory)")

	// Logging
	fs.StringVar(&cfg.LogLevel, "log-level", env.String("LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", os.Getenv("LOG_FORMAT"), "text or json (default: text on a terminal)")
	fs.StringVar(&cfg.LogFile, "log-file", os.Getenv("LOG_FILE"), "Also write logs to this rotated file")

	if env.err != nil {
		return Config{}, env.err
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.PublicPort == 0 {
		cfg.PublicPort = cfg.Port
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.AuthorizationMode < 0 || c.AuthorizationMode > 2 {
		return fmt.Errorf("invalid authorization mode %d", c.AuthorizationMode)
	}
	if c.AuthorizationMode == int(policy.ModeDiscord) && (c.BindSalt == "" || c.DiscordBotSecret == "") {
		return errors.New("BIND_SALT and DISCORD_BOT_SECRET required in discord mode")
	}
	if c.SimultaneousLogins < 1 {
		return errors.New("SIMULTANEOUS_LOGINS must be at least 1")
	}
	if c.ThreadCount < 1 {
		return errors.New("THREAD_COUNT must be at least 1")
	}
	return nil
}

// BaseURL is the URL prefix of every asset link, ending in a slash.
func (c Config) BaseURL() string {
	if c.OverrideHost != "" {
		return c.OverrideHost
	}
	return fmt.Sprintf("http://%s:%d/", c.PublicHost, c.PublicPort)
}

func (c Config) Policy() policy.Config {
	return policy.Config{
		AuthorizationNeeded:       c.AuthorizationNeeded,
		Mode:                      policy.Mode(c.AuthorizationMode),
		GrandfatheredAccountLimit: c.GrandfatheredAccountLimit,
	}
}

func (c Config) Prices() shop.Prices {
	return shop.Prices{
		Stage:  c.StagePrice,
		Avatar: c.AvatarPrice,
		Item:   c.ItemPrice,
		FMax:   c.FMaxPrice,
		Extra:  c.ExtraPrice,
	}
}

func (c Config) Mailer() mailer.Config {
	return mailer.Config{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		User:     c.SMTPUser,
		Password: c.SMTPPassword,
	}
}

func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// envReader reads typed environment variables and keeps the first
// malformed one as its error.
type envReader struct {
	err error
}

func (e *envReader) fail(key string) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s env variable", key)
	}
}

func (e *envReader) String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key)
		return def
	}
	return n
}

func (e *envReader) Int64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key)
		return def
	}
	return n
}

func (e *envReader) Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key)
		return def
	}
	return b
}

// Duration accepts a Go duration or a bare number of seconds.
func (e *envReader) Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key)
		return def
	}
	return d
}
