package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ClientConfig captures runtime settings for the submit-and-poll client.
type ClientConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	PollIntervalMS  int    `mapstructure:"poll_interval_ms"`
	PollTimeoutS    int    `mapstructure:"poll_timeout_s"`
	RequestTimeoutS int    `mapstructure:"request_timeout_s"`
	AuthHeader      string `mapstructure:"auth_header"`
}

// SimulatorConfig captures runtime settings for the queue simulator.
type SimulatorConfig struct {
	ListenAddr         string `mapstructure:"listen_addr"`
	BaseURL            string `mapstructure:"base_url"`
	Store              string `mapstructure:"store"`
	RedisURL           string `mapstructure:"redis_url"`
	PostgresDSN        string `mapstructure:"postgres_dsn"`
	RetryAfterSeconds  int    `mapstructure:"retry_after_s"`
	CompleteAfterPolls int    `mapstructure:"complete_after_polls"`
}

// LoadClient loads client configuration from defaults, files, and env vars.
func LoadClient() (ClientConfig, error) {
	v := newViper("PETPLANTR")

	v.SetDefault("endpoint", "http://localhost:8090/v1/analyses")
	v.SetDefault("poll_interval_ms", 1000)
	v.SetDefault("poll_timeout_s", 120)
	v.SetDefault("request_timeout_s", 15)
	v.SetDefault("auth_header", "")

	if err := readConfig(v); err != nil {
		return ClientConfig{}, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadSimulator loads simulator configuration from defaults, files, and env
// vars.
func LoadSimulator() (SimulatorConfig, error) {
	v := newViper("SIMULATOR")

	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("base_url", "")
	v.SetDefault("store", "memory")
	v.SetDefault("redis_url", "redis://localhost:6379")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("retry_after_s", 1)
	v.SetDefault("complete_after_polls", 3)

	if err := readConfig(v); err != nil {
		return SimulatorConfig{}, err
	}

	var cfg SimulatorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SimulatorConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func newViper(envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("load config: %w", err)
		}
	}
	return nil
}
