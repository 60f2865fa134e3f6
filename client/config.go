package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/puyokura/housechat/discovery"
	"github.com/puyokura/housechat/model"
	"github.com/spf13/viper"
)

type DiscoveryConfig struct {
	Port      int           `mapstructure:"port"`
	Message   string        `mapstructure:"message"`
	Broadcast string        `mapstructure:"broadcast"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Config is the client configuration, read from clientconfig.json and HOUSECHAT_* variables.
type Config struct {
	Discovery   DiscoveryConfig `mapstructure:"discovery"`
	Tick        time.Duration   `mapstructure:"tick"`
	DialTimeout time.Duration   `mapstructure:"dial_timeout"`
	MaxChats    int             `mapstructure:"max_chats"`
	LogFile     string          `mapstructure:"log_file"`
}

// LoadConfig reads file if it exists. Unlike the server, the client never writes one.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("discovery.port", model.DefaultDiscoveryPort)
	v.SetDefault("discovery.message", model.DefaultDiscoveryMessage)
	v.SetDefault("discovery.broadcast", "255.255.255.255")
	v.SetDefault("discovery.timeout", model.DefaultDiscoveryTimeout.String())
	v.SetDefault("tick", DefaultTick.String())
	v.SetDefault("dial_timeout", "5s")
	v.SetDefault("max_chats", DefaultMaxChats)
	v.SetDefault("log_file", "client.log")

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
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Discovery.Port <= 0 || cfg.Discovery.Port > 65535 {
		return nil, fmt.Errorf("config: invalid discovery.port (%d)", cfg.Discovery.Port)
	}
	if cfg.Discovery.Message == "" {
		return nil, errors.New("config: discovery.message is empty")
	}
	if cfg.Discovery.Timeout <= 0 {
		return nil, fmt.Errorf("config: invalid discovery.timeout (%v)", cfg.Discovery.Timeout)
	}
	return &cfg, nil
}

// Probe returns the discovery request described by the configuration.
func (c *Config) Probe() discovery.ProbeConfig {
	return discovery.ProbeConfig{
		BroadcastAddr: net.JoinHostPort(c.Discovery.Broadcast, strconv.Itoa(c.Discovery.Port)),
		Request:       []byte(c.Discovery.Message),
		Timeout:       c.Discovery.Timeout,
	}
}
