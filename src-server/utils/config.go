package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"emailtoics/src-server/ical"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Optional YAML file pointed to by CONFIG_FILE. Environment variables win
// over the file.
type FileConfig struct {
	Port   string `yaml:"port"`
	Engine struct {
		DefaultTimezone string `yaml:"default_timezone"`
		ProdID          string `yaml:"prod_id"`
		UIDDomainSuffix string `yaml:"uid_domain_suffix"`
		AllDayEnd       string `yaml:"all_day_end"`
		UIDPolicy       string `yaml:"uid_policy"`
	} `yaml:"engine"`
	Pending struct {
		TTL          string `yaml:"ttl"`
		SweepCron    string `yaml:"sweep_cron"`
		DatabasePath string `yaml:"database_path"`
	} `yaml:"pending"`
}

// Read a FileConfig. An empty path or a missing file gives an empty config.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("LoadFileConfig: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("LoadFileConfig: %w", err)
	}
	return fc, nil
}

type Config struct {
	port         string
	maxBodyBytes int64
	databasePath string

	discordGuildID           string
	discordAppToken          string
	discordClientId          string
	discordDeliveryChannelID string

	engine ical.Config

	pendingTTL       time.Duration
	pendingSweepCron string

	metricCollectionInterval time.Duration
}

// Read the configuration from the process environment and CONFIG_FILE, exit
// on invalid values.
func NewConfig() *Config {
	cfg, err := LoadConfig(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Read the configuration through getenv. All problems are reported at once.
func LoadConfig(getenv func(string) string) (*Config, error) {
	fc, err := LoadFileConfig(getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	var errs []error
	// env first, then the file, then the default
	pick := func(key, fromFile, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		if v := strings.TrimSpace(fromFile); v != "" {
			return v
		}
		return def
	}

	c := &Config{
		port: func() string {
			port := pick("PORT", fc.Port, "8080")
			slog.Debug("env", "PORT", port)
			return port
		}(),
		maxBodyBytes: func() int64 {
			raw := pick("MAX_BODY_BYTES", "", "1048576")
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n <= 0 {
				errs = append(errs, fmt.Errorf("invalid MAX_BODY_BYTES %q", raw))
				return 0
			}
			return n
		}(),
		databasePath: func() string {
			path := pick("DATABASE_PATH", fc.Pending.DatabasePath, "./sqlite.db")
			slog.Debug("env", "DATABASE_PATH", path)
			return path
		}(),

		discordAppToken: func() string {
			token := getenv("DISCORD_APP_TOKEN")
			if token == "" {
				slog.Info("DISCORD_APP_TOKEN is not set, the Discord bot is disabled")
				return ""
			}
			if len(token) > 3 {
				slog.Debug("env", "DISCORD_APP_TOKEN", token[0:3]+"...")
			}
			return token
		}(),
		discordClientId:          getenv("DISCORD_CLIENT_ID"),
		discordGuildID:           getenv("DISCORD_GUILD_ID"),
		discordDeliveryChannelID: getenv("DISCORD_DELIVERY_CHANNEL_ID"),

		engine: func() ical.Config {
			ec := ical.Config{
				DefaultTimezone: pick("DEFAULT_TIMEZONE", fc.Engine.DefaultTimezone, ical.DefaultTimezone),
				ProdID:          pick("PROD_ID", fc.Engine.ProdID, ical.DefaultProdID),
				UIDDomainSuffix: pick("UID_DOMAIN_SUFFIX", fc.Engine.UIDDomainSuffix, ical.DefaultUIDDomainSuffix),
			}
			if _, err := time.LoadLocation(ec.DefaultTimezone); err != nil {
				errs = append(errs, fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", ec.DefaultTimezone, err))
			}
			allDayEnd, err := ical.ParseAllDayEndPolicy(pick("ALL_DAY_END", fc.Engine.AllDayEnd, ""))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid ALL_DAY_END: %w", err))
			}
			ec.AllDayEnd = allDayEnd
			uidPolicy, err := ical.ParseUIDPolicy(pick("UID_POLICY", fc.Engine.UIDPolicy, ""))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid UID_POLICY: %w", err))
			}
			ec.UIDPolicy = uidPolicy
			slog.Debug("env", "DEFAULT_TIMEZONE", ec.DefaultTimezone, "ALL_DAY_END", ec.AllDayEnd, "UID_POLICY", ec.UIDPolicy)
			return ec
		}(),

		pendingTTL: func() time.Duration {
			raw := pick("PENDING_TTL", fc.Pending.TTL, "30m")
			ttl, err := time.ParseDuration(raw)
			if err != nil || ttl <= 0 {
				errs = append(errs, fmt.Errorf("invalid PENDING_TTL %q", raw))
				return 0
			}
			slog.Debug("env", "PENDING_TTL", ttl)
			return ttl
		}(),
		pendingSweepCron: func() string {
			spec := pick("PENDING_SWEEP_CRON", fc.Pending.SweepCron, "*/5 * * * *")
			if _, err := cron.ParseStandard(spec); err != nil {
				errs = append(errs, fmt.Errorf("invalid PENDING_SWEEP_CRON %q: %w", spec, err))
			}
			slog.Debug("env", "PENDING_SWEEP_CRON", spec)
			return spec
		}(),

		metricCollectionInterval: func() time.Duration {
			raw := pick("METRIC_COLLECTION_INTERVAL", "", "5s")
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				errs = append(errs, fmt.Errorf("invalid METRIC_COLLECTION_INTERVAL %q", raw))
				return 0
			}
			return d
		}(),
	}

	if c.discordAppToken != "" && c.discordClientId == "" {
		errs = append(errs, errors.New("DISCORD_CLIENT_ID is required when DISCORD_APP_TOKEN is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get MAX_BODY_BYTES env, default to 1MiB
func (c *Config) GetMaxBodyBytes() int64 {
	return c.maxBodyBytes
}

// Get DATABASE_PATH env, default to ./sqlite.db
func (c *Config) GetDatabasePath() string {
	return c.databasePath
}

// Get DISCORD_GUILD_ID env; empty registers global commands
func (c *Config) GetDiscordGuildID() string {
	return c.discordGuildID
}

// Get DISCORD_APP_TOKEN env; empty disables the bot
func (c *Config) GetDiscordAppToken() string {
	return c.discordAppToken
}

// Get DISCORD_CLIENT_ID env
func (c *Config) GetDiscordClientId() string {
	return c.discordClientId
}

// Get DISCORD_DELIVERY_CHANNEL_ID env; confirmed invites are posted there
func (c *Config) GetDiscordDeliveryChannelID() string {
	return c.discordDeliveryChannelID
}

// Get the calendar engine configuration
func (c *Config) GetEngineConfig() ical.Config {
	return c.engine
}

// Get PENDING_TTL env, default to 30m
func (c *Config) GetPendingTTL() time.Duration {
	return c.pendingTTL
}

// Get PENDING_SWEEP_CRON env, default to every 5 minutes
func (c *Config) GetPendingSweepCron() string {
	return c.pendingSweepCron
}

// Get METRIC_COLLECTION_INTERVAL env, default to 5s
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}
