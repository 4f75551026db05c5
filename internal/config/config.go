package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/groster/groster/internal/alts"
	"github.com/groster/groster/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Blizzard BlizzardConfig `yaml:"blizzard" mapstructure:"blizzard"`
	Guild    GuildConfig    `yaml:"guild" mapstructure:"guild"`
	Alts     alts.Config    `yaml:"alts" mapstructure:"alts"`
	Discord  DiscordConfig  `yaml:"discord" mapstructure:"discord"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Ranks    RanksConfig    `yaml:"ranks" mapstructure:"ranks"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BlizzardConfig holds Battle.net API credentials and client tuning.
type BlizzardConfig struct {
	ClientID         string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret     string  `yaml:"client_secret" mapstructure:"client_secret"`
	Locale           string  `yaml:"locale" mapstructure:"locale"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	OAuthURL         string  `yaml:"oauth_url" mapstructure:"oauth_url"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// GuildConfig names the guild to track.
type GuildConfig struct {
	Region string `yaml:"region" mapstructure:"region"`
	Realm  string `yaml:"realm" mapstructure:"realm"`
	Name   string `yaml:"name" mapstructure:"name"`
}

// Key returns the store key of the configured guild.
func (g GuildConfig) Key() model.GuildKey {
	return model.GuildKey{
		Region: strings.ToLower(g.Region),
		Realm:  strings.ToLower(g.Realm),
		Guild:  strings.ToLower(g.Name),
	}
}

// DiscordConfig holds the Discord application settings.
type DiscordConfig struct {
	PublicKey string `yaml:"public_key" mapstructure:"public_key"`
	AppID     string `yaml:"app_id" mapstructure:"app_id"`
	GuildID   string `yaml:"guild_id" mapstructure:"guild_id"`
	BotToken  string `yaml:"bot_token" mapstructure:"bot_token"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// ServerConfig configures the interactions webhook server.
type ServerConfig struct {
	Host        string   `yaml:"host" mapstructure:"host"`
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// RanksConfig points at an optional per-guild rank name override file.
type RanksConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ReportConfig configures report rendering.
type ReportConfig struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
	XLSXPath string `yaml:"xlsx_path" mapstructure:"xlsx_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Drivers lists the supported store drivers.
var Drivers = []string{"csv", "sqlite", "postgres"}

// legacyEnv maps config keys to the unprefixed variable names used in
// existing .env files. The GROSTER_ prefixed name takes precedence.
var legacyEnv = map[string]string{
	"blizzard.client_id":     "BLIZZARD_CLIENT_ID",
	"blizzard.client_secret": "BLIZZARD_CLIENT_SECRET",
	"guild.region":           "WOW_REGION",
	"guild.realm":            "WOW_REALM",
	"guild.name":             "WOW_GUILD",
	"discord.public_key":     "DISCORD_PUBLIC_KEY",
	"discord.app_id":         "DISCORD_APP_ID",
	"discord.guild_id":       "DISCORD_GUILD_ID",
	"discord.bot_token":      "DISCORD_BOT_TOKEN",
	"store.data_dir":         "GROSTER_DATA_PATH",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		envKey := "GROSTER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, name); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", name)
		}
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("blizzard.client_id", "")
	v.SetDefault("blizzard.client_secret", "")
	v.SetDefault("blizzard.locale", "en_US")
	v.SetDefault("blizzard.base_url", "")
	v.SetDefault("blizzard.oauth_url", "")
	v.SetDefault("blizzard.rate_limit", 90.0)
	v.SetDefault("blizzard.concurrency", 50)
	v.SetDefault("blizzard.timeout_secs", 30)
	v.SetDefault("blizzard.max_attempts", 5)
	v.SetDefault("blizzard.initial_backoff_ms", 500)
	v.SetDefault("blizzard.max_backoff_ms", 5000)
	v.SetDefault("blizzard.breaker_threshold", 10)
	v.SetDefault("blizzard.breaker_reset_secs", 30)
	v.SetDefault("guild.region", "eu")
	v.SetDefault("guild.realm", "")
	v.SetDefault("guild.name", "")
	v.SetDefault("alts.fingerprint_ids", alts.DefaultFingerprintIDs)
	v.SetDefault("alts.onboarding_id", alts.DefaultOnboardingID)
	v.SetDefault("alts.threshold", alts.DefaultThreshold)
	v.SetDefault("alts.min_fingerprint", alts.MinReliableFingerprint)
	v.SetDefault("alts.collection_prefilter", false)
	v.SetDefault("discord.public_key", "")
	v.SetDefault("discord.app_id", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.bot_token", "")
	v.SetDefault("discord.base_url", "https://discord.com/api/v10")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("ranks.file", "")
	v.SetDefault("report.timezone", "UTC")
	v.SetDefault("report.xlsx_path", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "update":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateGuild()...)
		if c.Blizzard.ClientID == "" {
			errs = append(errs, "blizzard.client_id is required")
		}
		if c.Blizzard.ClientSecret == "" {
			errs = append(errs, "blizzard.client_secret is required")
		}
		if c.Blizzard.Concurrency <= 0 {
			errs = append(errs, "blizzard.concurrency must be > 0")
		}
		if c.Blizzard.RateLimit <= 0 || c.Blizzard.RateLimit > 100 {
			errs = append(errs, "blizzard.rate_limit must be in (0, 100]")
		}
		errs = append(errs, c.validateAlts()...)
	case "alts":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateGuild()...)
		errs = append(errs, c.validateAlts()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateGuild()...)
		if c.Discord.PublicKey == "" {
			errs = append(errs, "discord.public_key is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "register":
		if c.Discord.AppID == "" {
			errs = append(errs, "discord.app_id is required")
		}
		if c.Discord.GuildID == "" {
			errs = append(errs, "discord.guild_id is required")
		}
		if c.Discord.BotToken == "" {
			errs = append(errs, "discord.bot_token is required")
		}
	case "runs":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	if !slices.Contains(Drivers, c.Store.Driver) {
		errs = append(errs, "store.driver must be one of "+strings.Join(Drivers, ", "))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.Store.Driver != "postgres" && c.Store.DataDir == "" {
		errs = append(errs, "store.data_dir is required")
	}
	return errs
}

func (c *Config) validateGuild() []string {
	var errs []string
	if c.Guild.Region == "" {
		errs = append(errs, "guild.region is required")
	}
	if c.Guild.Realm == "" {
		errs = append(errs, "guild.realm is required")
	}
	if c.Guild.Name == "" {
		errs = append(errs, "guild.name is required")
	}
	return errs
}

func (c *Config) validateAlts() []string {
	if err := c.Alts.Validate(); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
