package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Name != "prisma" {
		t.Errorf("expected name=prisma, got %s", cfg.Name)
	}
	if cfg.Expiry.Post != 10*time.Second {
		t.Errorf("expected expiry.post=10s, got %s", cfg.Expiry.Post)
	}
	if cfg.Expiry.Chat != 5*time.Second {
		t.Errorf("expected expiry.chat=5s, got %s", cfg.Expiry.Chat)
	}
	if cfg.Beacon.Interval != 2*time.Minute {
		t.Errorf("expected beacon.interval=2m, got %s", cfg.Beacon.Interval)
	}
	if cfg.MQTT.TopicPrefix != "prisma" {
		t.Errorf("expected mqtt.topic_prefix=prisma, got %s", cfg.MQTT.TopicPrefix)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("expected serial.baud_rate=115200, got %d", cfg.Serial.BaudRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
name: sala-azul
log_level: debug
console: false
expiry:
  post: 30s
beacon:
  interval: 0s
mqtt:
  broker: tcp://localhost:1883
  room: azul
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if cfg.Name != "sala-azul" {
		t.Errorf("name = %s", cfg.Name)
	}
	if cfg.Console {
		t.Error("expected console=false")
	}
	if cfg.Expiry.Post != 30*time.Second {
		t.Errorf("expiry.post = %s", cfg.Expiry.Post)
	}
	if cfg.Expiry.Chat != 5*time.Second {
		t.Errorf("expiry.chat = %s, want default 5s", cfg.Expiry.Chat)
	}
	if cfg.Beacon.Interval != 0 {
		t.Errorf("beacon.interval = %s, want 0", cfg.Beacon.Interval)
	}
	if cfg.MQTT.TopicPrefix != "prisma" {
		t.Errorf("mqtt.topic_prefix = %s, want default", cfg.MQTT.TopicPrefix)
	}
	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"short seed", "key_seed: abcd", ErrInvalidKeySeed},
		{"non-hex seed", "key_seed: zz00000000000000000000000000000000000000000000000000000000000000", ErrInvalidKeySeed},
		{"zero post expiry", "expiry:\n  post: 0s", ErrInvalidExpiry},
		{"negative chat expiry", "expiry:\n  chat: -1s", ErrInvalidExpiry},
		{"negative beacon", "beacon:\n  interval: -1m", ErrInvalidInterval},
		{"broker without room", "mqtt:\n  broker: tcp://x:1883", ErrMissingRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_BadLogLevel(t *testing.T) {
	if _, err := Parse([]byte("log_level: chatty")); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestParse_BadYAML(t *testing.T) {
	if _, err := Parse([]byte("expiry: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestParse_ValidSeed(t *testing.T) {
	seed := "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	cfg, err := Parse([]byte("key_seed: " + seed))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.KeySeed != seed {
		t.Errorf("key_seed = %s", cfg.KeySeed)
	}
}

func TestLoad_WithoutEnv(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Name != Default().Name {
		t.Errorf("expected defaults, got name=%s", cfg.Name)
	}
}

func TestLoad_WithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prisma.yaml")
	if err := os.WriteFile(path, []byte("name: from-env\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("name = %s", cfg.Name)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
