package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/puyokura/housechat/model"
)

func TestLoadConfig_Defaults(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clientconfig.json")
	cfg, err := LoadConfig(file)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tick != DefaultTick || cfg.MaxChats != DefaultMaxChats || cfg.LogFile != "client.log" {
		t.Errorf("cfg = %+v", cfg)
	}
	probe := cfg.Probe()
	if probe.BroadcastAddr != "255.255.255.255:8081" || string(probe.Request) != model.DefaultDiscoveryMessage || probe.Timeout != 5*time.Second {
		t.Errorf("probe = %+v", probe)
	}
	if _, err := os.Stat(file); err == nil {
		t.Error("client wrote a config file")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clientconfig.json")
	data := `{"discovery": {"broadcast": "192.168.1.255", "timeout": "2s"}, "max_chats": 50}`
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOUSECHAT_DISCOVERY_PORT", "9999")

	cfg, err := LoadConfig(file)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	probe := cfg.Probe()
	if probe.BroadcastAddr != "192.168.1.255:9999" || probe.Timeout != 2*time.Second {
		t.Errorf("probe = %+v", probe)
	}
	if cfg.MaxChats != 50 {
		t.Errorf("MaxChats = %d", cfg.MaxChats)
	}
}

func TestLoadConfig_RejectsBadTimeout(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clientconfig.json")
	if err := os.WriteFile(file, []byte(`{"discovery": {"timeout": "0s"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(file); err == nil {
		t.Error("zero discovery timeout accepted")
	}
}
