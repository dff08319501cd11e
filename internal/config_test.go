package internal

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var cfg WatcherConfig
	if err := yaml.Unmarshal([]byte("debounce: 1500ms\n"), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Debounce.Std() != 1500*time.Millisecond {
		t.Errorf("debounce = %v, want 1.5s", cfg.Debounce.Std())
	}
}

func TestDurationUnmarshal_Invalid(t *testing.T) {
	var cfg WatcherConfig
	if err := yaml.Unmarshal([]byte("debounce: soonish\n"), &cfg); err == nil {
		t.Error("invalid duration should fail")
	}
}

func TestModelConfig_TemperatureBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Model.Temperature = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("temperature above 1 should fail validation")
	}
}

func TestVaultConfig_PathRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty vault path should fail validation")
	}
}

func TestConfirmConfig_PortRange(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Confirm.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("port 0 should fail validation")
	}
	cfg.Confirm.HTTP.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("port above 65535 should fail validation")
	}
}

func TestToolsConfig_LoopCapMinimum(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Tools.LoopCap = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero loop cap falls back to the engine default: %v", err)
	}
	cfg.Tools.LoopCap = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative loop cap should fail validation")
	}
}
