// Package relayconfig defines the Central Hub and User Hub
// configuration structures, their defaults, and an environment-variable
// loader. Each runtime component keeps the copy of its configuration
// it was constructed with.
package relayconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// CentralConfig configures the Central Hub singleton.
type CentralConfig struct {
	// MaxConnectionsPerUser bounds how many concurrent connections a
	// single user may hold before admission is rejected.
	MaxConnectionsPerUser int

	// UserHubInactivityTimeout is how long a User Hub may sit with zero
	// connections before the Central Hub's GC sweep terminates it.
	UserHubInactivityTimeout time.Duration

	// QueueMultiplier scales MaxConnectionsPerUser into a per-User-Hub
	// mailbox size (MessageQueueSize).
	QueueMultiplier int

	// Host is the spawn host given to plugin descriptors that name none
	// (see cmd/relayd's plugin discovery).
	Host string

	// UserSecurityScope names the security.Scope resolved once at
	// Central Hub start; a missing scope is a fatal startup error.
	UserSecurityScope string

	// MessageQueueSize is derived: MaxConnectionsPerUser * QueueMultiplier.
	MessageQueueSize int

	// GCCheckInterval is derived: UserHubInactivityTimeout / 2.5.
	GCCheckInterval time.Duration

	// HeartbeatInterval is derived: UserHubInactivityTimeout / 5.
	HeartbeatInterval time.Duration
}

// DefaultCentralConfig returns a CentralConfig with sensible defaults
// and its derived fields already computed.
func DefaultCentralConfig() CentralConfig {
	c := CentralConfig{
		MaxConnectionsPerUser:    10,
		UserHubInactivityTimeout: 300 * time.Second,
		QueueMultiplier:          100,
	}
	c.deriveFields()
	return c
}

// Merge overlays non-zero fields of source onto c, then recomputes the
// derived fields so they always track the merged inputs.
func (c *CentralConfig) Merge(source *CentralConfig) {
	if source.MaxConnectionsPerUser > 0 {
		c.MaxConnectionsPerUser = source.MaxConnectionsPerUser
	}
	if source.UserHubInactivityTimeout > 0 {
		c.UserHubInactivityTimeout = source.UserHubInactivityTimeout
	}
	if source.QueueMultiplier > 0 {
		c.QueueMultiplier = source.QueueMultiplier
	}
	if source.Host != "" {
		c.Host = source.Host
	}
	if source.UserSecurityScope != "" {
		c.UserSecurityScope = source.UserSecurityScope
	}
	c.deriveFields()
}

func (c *CentralConfig) deriveFields() {
	c.MessageQueueSize = c.MaxConnectionsPerUser * c.QueueMultiplier
	c.GCCheckInterval = time.Duration(float64(c.UserHubInactivityTimeout) / 2.5)
	c.HeartbeatInterval = c.UserHubInactivityTimeout / 5
}

// Validate reports the structural errors that must be treated as
// fatal at Central Hub startup.
func (c *CentralConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("relayconfig: %w: host", ErrRequiredFieldMissing)
	}
	if c.UserSecurityScope == "" {
		return fmt.Errorf("relayconfig: %w: user_security_scope", ErrRequiredFieldMissing)
	}
	if c.MaxConnectionsPerUser <= 0 {
		return fmt.Errorf("relayconfig: max_connections_per_user must be positive, got %d", c.MaxConnectionsPerUser)
	}
	if c.UserHubInactivityTimeout <= 0 {
		return fmt.Errorf("relayconfig: user_hub_inactivity_timeout must be positive, got %s", c.UserHubInactivityTimeout)
	}
	if c.QueueMultiplier <= 0 {
		return fmt.Errorf("relayconfig: queue_multiplier must be positive, got %d", c.QueueMultiplier)
	}
	return nil
}

// LoadFromEnv builds a CentralConfig from defaults overridden by
// environment variables named exactly after the config keys, upper
// cased (HOST, USER_SECURITY_SCOPE, MAX_CONNECTIONS_PER_USER,
// USER_HUB_INACTIVITY_TIMEOUT in seconds, QUEUE_MULTIPLIER). It returns
// a wrapped error the moment a set variable fails to parse, or when the
// merged result fails Validate.
func LoadFromEnv() (CentralConfig, error) {
	cfg := DefaultCentralConfig()
	override := CentralConfig{}

	if v, ok := os.LookupEnv("MAX_CONNECTIONS_PER_USER"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CentralConfig{}, fmt.Errorf("relayconfig: parsing MAX_CONNECTIONS_PER_USER: %w", err)
		}
		override.MaxConnectionsPerUser = n
	}

	if v, ok := os.LookupEnv("USER_HUB_INACTIVITY_TIMEOUT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CentralConfig{}, fmt.Errorf("relayconfig: parsing USER_HUB_INACTIVITY_TIMEOUT: %w", err)
		}
		override.UserHubInactivityTimeout = time.Duration(n) * time.Second
	}

	if v, ok := os.LookupEnv("QUEUE_MULTIPLIER"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CentralConfig{}, fmt.Errorf("relayconfig: parsing QUEUE_MULTIPLIER: %w", err)
		}
		override.QueueMultiplier = n
	}

	override.Host = os.Getenv("HOST")
	override.UserSecurityScope = os.Getenv("USER_SECURITY_SCOPE")

	cfg.Merge(&override)

	if err := cfg.Validate(); err != nil {
		return CentralConfig{}, err
	}
	return cfg, nil
}

// UserHubConfig configures a single User Hub, derived from the owning
// Central Hub's CentralConfig at spawn time.
type UserHubConfig struct {
	UserID            string
	MessageQueueSize  int
	InactivityTimeout time.Duration
	HeartbeatInterval time.Duration
}

// NewUserHubConfig derives a UserHubConfig for userID from a resolved
// CentralConfig.
func NewUserHubConfig(userID string, central CentralConfig) UserHubConfig {
	return UserHubConfig{
		UserID:            userID,
		MessageQueueSize:  central.MessageQueueSize,
		InactivityTimeout: central.UserHubInactivityTimeout,
		HeartbeatInterval: central.HeartbeatInterval,
	}
}
