package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN      string
		MaxConns int32 `mapstructure:"max_conns"`
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
		// PushURL is a Pushgateway that one-shot commands push their counters to.
		PushURL string `mapstructure:"push_url"`
	} `mapstructure:"metrics"`

	// Telegram is optional: without a token alerts only go to the log.
	Telegram struct {
		Token       string
		AlertChatID int64 `mapstructure:"alert_chat_id"`
	} `mapstructure:"telegram"`

	Engine struct {
		LockTimeout time.Duration `mapstructure:"lock_timeout"`
	} `mapstructure:"engine"`
}

// Load reads the YAML file at path. A .env next to the binary is loaded first,
// and WORKSTOCK_* variables override file values (postgres.dsn -> WORKSTOCK_POSTGRES_DSN).
func Load(path string) (Config, error) {
	// .env is optional
	_ = gotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WORKSTOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.push_url", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.alert_chat_id", 0)
	v.SetDefault("engine.lock_timeout", 5*time.Second)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := validate(c); err != nil {
		return c, err
	}
	return c, nil
}

func validate(c Config) error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Postgres.MaxConns <= 0 {
		return fmt.Errorf("postgres.max_conns must be > 0")
	}
	if c.Telegram.Token != "" && c.Telegram.AlertChatID == 0 {
		return fmt.Errorf("telegram.alert_chat_id is required when telegram.token is set")
	}
	return nil
}
