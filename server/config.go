package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/puyokura/housechat/model"
	"github.com/spf13/viper"
)

type DiscoveryConfig struct {
	Port    int    `mapstructure:"port"`
	Message string `mapstructure:"message"`
}

// Config is the server configuration. Every field can be set from serverconfig.json
// or from a HOUSECHAT_* environment variable (discovery.port -> HOUSECHAT_DISCOVERY_PORT).
type Config struct {
	TCPAddr       string          `mapstructure:"tcp_addr"`
	WebAddr       string          `mapstructure:"web_addr"`       // Empty disables the websocket gateway
	AdvertiseHost string          `mapstructure:"advertise_host"` // Empty means autodetect
	ServerName    string          `mapstructure:"server_name"`
	BusCapacity   int             `mapstructure:"bus_capacity"`
	DrainTimeout  time.Duration   `mapstructure:"drain_timeout"`
	BcryptCost    int             `mapstructure:"bcrypt_cost"`
	LogDir        string          `mapstructure:"log_dir"`
	Discovery     DiscoveryConfig `mapstructure:"discovery"`
}

// LoadConfig reads file, falling back to defaults. A missing file is created
// with the defaults so operators have something to edit.
func LoadConfig(logger *slog.Logger, file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("tcp_addr", net.JoinHostPort("0.0.0.0", strconv.Itoa(model.DefaultRelayPort)))
	v.SetDefault("web_addr", ":8090")
	v.SetDefault("advertise_host", "")
	v.SetDefault("server_name", model.DefaultSystemName)
	v.SetDefault("bus_capacity", DefaultHubCapacity)
	v.SetDefault("drain_timeout", "5s")
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("log_dir", "logs")
	v.SetDefault("discovery.port", model.DefaultDiscoveryPort)
	v.SetDefault("discovery.message", model.DefaultDiscoveryMessage)

	v.SetConfigFile(file)
	v.SetConfigType("json")

	v.SetEnvPrefix("HOUSECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
		logger.Warn("Config file not found, writing defaults", slog.String("file", file))
		if err := v.SafeWriteConfigAs(file); err != nil {
			logger.Warn("Could not write default config", slog.Any("error", err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Discovery.Port <= 0 || c.Discovery.Port > 65535 {
		return fmt.Errorf("config: invalid discovery.port (%d)", c.Discovery.Port)
	}
	if c.Discovery.Message == "" {
		return errors.New("config: discovery.message is empty")
	}
	if _, _, err := net.SplitHostPort(c.TCPAddr); err != nil {
		return fmt.Errorf("config: tcp_addr: %w", err)
	}
	if c.BusCapacity <= 0 {
		return fmt.Errorf("config: invalid bus_capacity (%d)", c.BusCapacity)
	}
	return nil
}

// Protocol returns the wire constants derived from the configuration.
func (c *Config) Protocol() model.Protocol {
	p := model.DefaultProtocol()
	p.DiscoveryPort = c.Discovery.Port
	p.DiscoveryMessage = []byte(c.Discovery.Message)
	if c.ServerName != "" {
		p.SystemName = c.ServerName
	}
	return p
}
