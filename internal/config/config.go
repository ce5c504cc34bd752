// Package config loads the run configuration from config.yml and SEATSCHED_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "yml"
	envPrefix  = "SEATSCHED"
)

// Keys are case-insensitive, so the upper-case names of older config files
// (USERNAME, CLASSROOMS_NAME, GITHUB, ...) load unchanged.
const (
	keyMode           = "mode"
	keyClassrooms     = "classrooms"
	keyClassroomsName = "classrooms_name"
	keySeatID         = "seat_id"
	keyDate           = "date"
	keyUsername       = "username"
	keyPassword       = "password"
	keyBarkURL        = "bark_url"
	keyBarkExtra      = "bark_extra"
	keyTelegramToken  = "telegram_bot_token"
	keyChannelID      = "channel_id"
	keyHeadless       = "headless"
	keyGithub         = "github"
	keyTimezone       = "timezone"
	keyBaseURL        = "base_url"
	keyAESKey         = "aes_key"
	keyAESIV          = "aes_iv"
	keyMaxRetries     = "max_retries"
	keyRequestTimeout = "request_timeout"
	keyRequestRate    = "request_rate"
	keyDatabaseURL    = "database_url"
	keyMetricsAddr    = "metrics_addr"
)

// Config is the immutable settings of one run.
type Config struct {
	Mode       reservation.Mode
	Classrooms []string
	SeatID     string
	Scope      reservation.DateScope

	Username string
	Password string

	BarkURL       string
	BarkExtra     string
	TelegramToken string
	ChannelID     string

	Location *time.Location

	BaseURL        string
	AESKey         string
	AESIV          string
	MaxRetries     int
	RequestTimeout time.Duration
	RequestRate    float64

	DatabaseURL string
	MetricsAddr string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyMode, string(reservation.ModeAuto))
	v.SetDefault(keyDate, string(reservation.ScopeTomorrow))
	v.SetDefault(keyTimezone, "Asia/Shanghai")
	v.SetDefault(keyBaseURL, "http://libyy.qfnu.edu.cn")
	v.SetDefault(keyAESKey, "server_date_time")
	v.SetDefault(keyAESIV, "client_date_time")
	v.SetDefault(keyMaxRetries, 200)
	v.SetDefault(keyRequestTimeout, 60*time.Second)
	v.SetDefault(keyRequestRate, 20)
}

// Read prepares v: defaults, SEATSCHED_ env overrides and the config file.
// An explicit path must exist; otherwise config.yml is looked up in the
// working directory and next to the executable, and may be absent.
func Read(v *viper.Viper, path string) error {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(".")
	if exe, err := os.Executable(); err == nil {
		v.AddConfigPath(filepath.Dir(exe))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

// Load decodes and validates the settings held by v. Missing credentials are
// not an error here; the credential cache reports them when first used.
func Load(v *viper.Viper) (Config, error) {
	mode, err := reservation.ParseMode(v.GetString(keyMode))
	if err != nil {
		return Config{}, err
	}
	scope, err := reservation.ParseDateScope(v.GetString(keyDate))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Mode:           mode,
		Classrooms:     classrooms(v),
		SeatID:         strings.TrimSpace(v.GetString(keySeatID)),
		Scope:          scope,
		Username:       v.GetString(keyUsername),
		Password:       v.GetString(keyPassword),
		BarkURL:        v.GetString(keyBarkURL),
		BarkExtra:      v.GetString(keyBarkExtra),
		TelegramToken:  v.GetString(keyTelegramToken),
		ChannelID:      strings.TrimSpace(v.GetString(keyChannelID)),
		BaseURL:        v.GetString(keyBaseURL),
		AESKey:         v.GetString(keyAESKey),
		AESIV:          v.GetString(keyAESIV),
		MaxRetries:     v.GetInt(keyMaxRetries),
		RequestTimeout: v.GetDuration(keyRequestTimeout),
		RequestRate:    v.GetFloat64(keyRequestRate),
		DatabaseURL:    v.GetString(keyDatabaseURL),
		MetricsAddr:    v.GetString(keyMetricsAddr),
	}

	if v.GetBool(keyHeadless) || present(v.Get(keyGithub)) {
		// CI runners keep UTC; the library runs on China Standard Time.
		cfg.Location = time.FixedZone("CST", 8*60*60)
	} else {
		loc, err := time.LoadLocation(v.GetString(keyTimezone))
		if err != nil {
			return Config{}, fmt.Errorf("timezone: %w", err)
		}
		cfg.Location = loc
	}

	if mode.Books() && len(cfg.Classrooms) == 0 {
		return Config{}, fmt.Errorf("mode %s needs at least one classroom", mode)
	}
	if mode == reservation.ModeFixed && cfg.SeatID == "" {
		return Config{}, errors.New("mode fixed needs seat_id")
	}
	if cfg.MaxRetries < 1 {
		return Config{}, fmt.Errorf("max_retries must be positive, got %d", cfg.MaxRetries)
	}
	if len(cfg.AESIV) != 16 {
		return Config{}, fmt.Errorf("aes_iv must be 16 bytes, got %d", len(cfg.AESIV))
	}
	return cfg, nil
}

// Targets returns one attempt loop target per classroom. Modes that do not
// book directly have none.
func (c Config) Targets() []reservation.Target {
	if !c.Mode.Books() {
		return nil
	}
	out := make([]reservation.Target, 0, len(c.Classrooms))
	for _, room := range c.Classrooms {
		t := reservation.Target{Classroom: room, Mode: c.Mode, Scope: c.Scope}
		if c.Mode == reservation.ModeFixed {
			t.SeatID = c.SeatID
		}
		out = append(out, t)
	}
	return out
}

// classrooms accepts a YAML list or a comma separated string.
func classrooms(v *viper.Viper) []string {
	raw := v.GetStringSlice(keyClassrooms)
	if len(raw) == 0 {
		raw = v.GetStringSlice(keyClassroomsName)
	}
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// present treats a legacy flag as set when it holds anything but an empty
// string or a false boolean.
func present(raw any) bool {
	switch x := raw.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return strings.TrimSpace(x) != ""
	default:
		return true
	}
}
