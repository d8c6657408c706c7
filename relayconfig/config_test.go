package relayconfig_test

import (
	"errors"
	"testing"
	"time"

	"github.com/wippy-systems/relay/relayconfig"
)

func TestDefaultCentralConfig_DerivesFields(t *testing.T) {
	cfg := relayconfig.DefaultCentralConfig()

	if cfg.MessageQueueSize != cfg.MaxConnectionsPerUser*cfg.QueueMultiplier {
		t.Errorf("MessageQueueSize = %d, want %d", cfg.MessageQueueSize, cfg.MaxConnectionsPerUser*cfg.QueueMultiplier)
	}
	if cfg.GCCheckInterval != time.Duration(float64(cfg.UserHubInactivityTimeout)/2.5) {
		t.Errorf("GCCheckInterval = %s, want %s", cfg.GCCheckInterval, time.Duration(float64(cfg.UserHubInactivityTimeout)/2.5))
	}
	if cfg.HeartbeatInterval != cfg.UserHubInactivityTimeout/5 {
		t.Errorf("HeartbeatInterval = %s, want %s", cfg.HeartbeatInterval, cfg.UserHubInactivityTimeout/5)
	}
}

func TestCentralConfig_Merge_OverlaysNonZero(t *testing.T) {
	cfg := relayconfig.DefaultCentralConfig()
	cfg.Merge(&relayconfig.CentralConfig{
		MaxConnectionsPerUser: 5,
		Host:                  "relay-1",
	})

	if cfg.MaxConnectionsPerUser != 5 {
		t.Errorf("MaxConnectionsPerUser = %d, want 5", cfg.MaxConnectionsPerUser)
	}
	if cfg.Host != "relay-1" {
		t.Errorf("Host = %q, want %q", cfg.Host, "relay-1")
	}
	// QueueMultiplier was untouched by the override, so MessageQueueSize
	// must re-derive from the new MaxConnectionsPerUser and the old
	// QueueMultiplier, not silently freeze.
	if cfg.MessageQueueSize != 5*cfg.QueueMultiplier {
		t.Errorf("MessageQueueSize = %d, want %d", cfg.MessageQueueSize, 5*cfg.QueueMultiplier)
	}
}

func TestCentralConfig_Validate_RequiresHostAndScope(t *testing.T) {
	cfg := relayconfig.DefaultCentralConfig()
	if err := cfg.Validate(); !errors.Is(err, relayconfig.ErrRequiredFieldMissing) {
		t.Fatalf("Validate() error = %v, want ErrRequiredFieldMissing", err)
	}

	cfg.Host = "relay-1"
	if err := cfg.Validate(); !errors.Is(err, relayconfig.ErrRequiredFieldMissing) {
		t.Fatalf("Validate() error = %v, want ErrRequiredFieldMissing", err)
	}

	cfg.UserSecurityScope = "default"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestLoadFromEnv_ParsesAndValidates(t *testing.T) {
	t.Setenv("HOST", "relay-1")
	t.Setenv("USER_SECURITY_SCOPE", "default")
	t.Setenv("MAX_CONNECTIONS_PER_USER", "3")
	t.Setenv("USER_HUB_INACTIVITY_TIMEOUT", "60")
	t.Setenv("QUEUE_MULTIPLIER", "10")

	cfg, err := relayconfig.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.MaxConnectionsPerUser != 3 {
		t.Errorf("MaxConnectionsPerUser = %d, want 3", cfg.MaxConnectionsPerUser)
	}
	if cfg.UserHubInactivityTimeout != 60*time.Second {
		t.Errorf("UserHubInactivityTimeout = %s, want 60s", cfg.UserHubInactivityTimeout)
	}
	if cfg.MessageQueueSize != 30 {
		t.Errorf("MessageQueueSize = %d, want 30", cfg.MessageQueueSize)
	}
}

func TestLoadFromEnv_RejectsUnparsableValue(t *testing.T) {
	t.Setenv("HOST", "relay-1")
	t.Setenv("USER_SECURITY_SCOPE", "default")
	t.Setenv("MAX_CONNECTIONS_PER_USER", "not-a-number")

	if _, err := relayconfig.LoadFromEnv(); err == nil {
		t.Fatal("LoadFromEnv() error = nil, want a parse error")
	}
}

func TestNewUserHubConfig_DerivesFromCentral(t *testing.T) {
	central := relayconfig.DefaultCentralConfig()
	uh := relayconfig.NewUserHubConfig("u1", central)

	if uh.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", uh.UserID, "u1")
	}
	if uh.MessageQueueSize != central.MessageQueueSize {
		t.Errorf("MessageQueueSize = %d, want %d", uh.MessageQueueSize, central.MessageQueueSize)
	}
}
