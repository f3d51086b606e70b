// Package config loads broker settings from config/config.ini, layering
// environment variable overrides (and, only when the command line has not
// been parsed yet, flag overrides) on top of the file's values.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
)

// Settings holds every tunable the broker reads at startup.
type Settings struct {
	ListenHost string
	ListenPort int

	AuthUsername string
	AuthPassword string

	CooldownHours         float64
	CooldownReuseHours    float64
	EncounterLimit        int
	DeviceMaxLoginsHour   int
	AccountMaxLoginsHour  int
	DisableIVPurpose      bool

	DBHost string
	DBPort int
	DBUser string
	DBPass string
	DBName string

	PoolMaxIdle     int
	PoolMaxOpen     int
	PoolConnLife    time.Duration

	ConcurrencyLimit int
	ConcurrencyQueue int

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Default returns the broker's documented defaults.
func Default() Settings {
	return Settings{
		ListenHost:           "0.0.0.0",
		ListenPort:           8080,
		AuthUsername:         "admin",
		AuthPassword:         "changeme",
		CooldownHours:        24,
		CooldownReuseHours:   3,
		EncounterLimit:       6500,
		DeviceMaxLoginsHour:  4,
		AccountMaxLoginsHour: 4,
		DisableIVPurpose:     false,
		DBHost:               "localhost",
		DBPort:               3306,
		DBUser:               "broker",
		DBPass:               "",
		DBName:               "accountbroker",
		PoolMaxIdle:          10,
		PoolMaxOpen:          25,
		PoolConnLife:         10 * time.Minute,
		ConcurrencyLimit:     10,
		ConcurrencyQueue:     100,
		RateLimitPerSecond:   5,
		RateLimitBurst:       10,
	}
}

// DSN builds a go-sql-driver/mysql data source name from the database
// fields.
func (s Settings) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", s.DBUser, s.DBPass, s.DBHost, s.DBPort, s.DBName)
}

// CooldownSeconds converts CooldownHours to seconds for predicate math.
func (s Settings) CooldownSeconds() int64 {
	return int64(s.CooldownHours * 3600)
}

// ShortCooldownSeconds converts CooldownReuseHours to seconds.
func (s Settings) ShortCooldownSeconds() int64 {
	return int64(s.CooldownReuseHours * 3600)
}

// Load reads configPath (config/config.ini's [general] and [database]
// sections), then applies flag and environment overrides in that order —
// file defaults, then flags, then env, so env wins last. Flags are
// registered and parsed only if the process's command line has not been
// parsed before Load runs; cmd/accountbroker parses its own flags first, so
// in that binary only file values and environment variables apply.
func Load(configPath string) (Settings, error) {
	s := Default()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := loadFromINI(configPath, &s); err != nil {
				return s, fmt.Errorf("config: loading %s: %w", configPath, err)
			}
		}
	}

	loadFromFlags(&s)
	loadFromEnv(&s)

	return s, nil
}

func loadFromINI(path string, s *Settings) error {
	file, err := ini.Load(path)
	if err != nil {
		return err
	}

	general := file.Section("general")
	s.ListenHost = general.Key("listen_host").MustString(s.ListenHost)
	s.ListenPort = general.Key("listen_port").MustInt(s.ListenPort)
	s.AuthUsername = general.Key("auth_username").MustString(s.AuthUsername)
	s.AuthPassword = general.Key("auth_password").MustString(s.AuthPassword)
	s.CooldownHours = general.Key("cooldown").MustFloat64(s.CooldownHours)
	s.CooldownReuseHours = general.Key("cooldown_reuse").MustFloat64(s.CooldownReuseHours)
	s.EncounterLimit = general.Key("encounter_limit").MustInt(s.EncounterLimit)
	s.DeviceMaxLoginsHour = general.Key("device_max_logins_per_hour").MustInt(s.DeviceMaxLoginsHour)
	s.AccountMaxLoginsHour = general.Key("account_max_logins_per_hour").MustInt(s.AccountMaxLoginsHour)
	s.DisableIVPurpose = general.Key("disable_iv_purpose").MustBool(s.DisableIVPurpose)

	db := file.Section("database")
	s.DBHost = db.Key("host").MustString(s.DBHost)
	s.DBPort = db.Key("port").MustInt(s.DBPort)
	s.DBUser = db.Key("user").MustString(s.DBUser)
	s.DBPass = db.Key("pass").MustString(s.DBPass)
	s.DBName = db.Key("db").MustString(s.DBName)

	return nil
}

func loadFromFlags(s *Settings) {
	if flag.Parsed() {
		return
	}
	flag.StringVar(&s.ListenHost, "listen-host", s.ListenHost, "HTTP listen address")
	flag.IntVar(&s.ListenPort, "listen-port", s.ListenPort, "HTTP listen port")
	flag.StringVar(&s.AuthUsername, "auth-username", s.AuthUsername, "HTTP basic auth username")
	flag.StringVar(&s.AuthPassword, "auth-password", s.AuthPassword, "HTTP basic auth password")
	flag.Float64Var(&s.CooldownHours, "cooldown-hours", s.CooldownHours, "Reuse cooldown in hours")
	flag.Float64Var(&s.CooldownReuseHours, "cooldown-reuse-hours", s.CooldownReuseHours, "Short cooldown in hours")
	flag.IntVar(&s.EncounterLimit, "encounter-limit", s.EncounterLimit, "Encounter budget ceiling")
	flag.IntVar(&s.DeviceMaxLoginsHour, "device-max-logins-hour", s.DeviceMaxLoginsHour, "Per-device hourly login cap")
	flag.IntVar(&s.AccountMaxLoginsHour, "account-max-logins-hour", s.AccountMaxLoginsHour, "Per-account hourly login cap")
	flag.BoolVar(&s.DisableIVPurpose, "disable-iv-purpose", s.DisableIVPurpose, "Reject the iv purpose outright")
	flag.StringVar(&s.DBHost, "db-host", s.DBHost, "MySQL host")
	flag.IntVar(&s.DBPort, "db-port", s.DBPort, "MySQL port")
	flag.StringVar(&s.DBUser, "db-user", s.DBUser, "MySQL user")
	flag.StringVar(&s.DBPass, "db-pass", s.DBPass, "MySQL password")
	flag.StringVar(&s.DBName, "db-name", s.DBName, "MySQL database name")
	flag.Parse()
}

func loadFromEnv(s *Settings) {
	s.ListenHost = getEnv("LISTEN_HOST", s.ListenHost)
	s.ListenPort = getEnvInt("LISTEN_PORT", s.ListenPort)
	s.AuthUsername = getEnv("AUTH_USERNAME", s.AuthUsername)
	s.AuthPassword = getEnv("AUTH_PASSWORD", s.AuthPassword)
	s.CooldownHours = getEnvFloat64("COOLDOWN_HOURS", s.CooldownHours)
	s.CooldownReuseHours = getEnvFloat64("COOLDOWN_REUSE_HOURS", s.CooldownReuseHours)
	s.EncounterLimit = getEnvInt("ENCOUNTER_LIMIT", s.EncounterLimit)
	s.DeviceMaxLoginsHour = getEnvInt("DEVICE_MAX_LOGINS_PER_HOUR", s.DeviceMaxLoginsHour)
	s.AccountMaxLoginsHour = getEnvInt("ACCOUNT_MAX_LOGINS_PER_HOUR", s.AccountMaxLoginsHour)
	s.DisableIVPurpose = getEnvBool("DISABLE_IV_PURPOSE", s.DisableIVPurpose)
	s.DBHost = getEnv("DB_HOST", s.DBHost)
	s.DBPort = getEnvInt("DB_PORT", s.DBPort)
	s.DBUser = getEnv("DB_USER", s.DBUser)
	s.DBPass = getEnv("DB_PASS", s.DBPass)
	s.DBName = getEnv("DB_NAME", s.DBName)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat64(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
