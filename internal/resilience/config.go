package resilience

import "time"

const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// remote worker calls sit on the pointer path, so trip quickly
	RemoteThreshold         = 3
	RemoteResetTimeout      = 2 * time.Second
	RemoteHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // shows up in state-change logs
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before a half-open probe
	HalfOpenSuccesses int           // probes needed to close
}

// DefaultConfig returns general-purpose settings.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// RemoteConfig returns settings for guarding the out-of-process worker.
func RemoteConfig() Config {
	return Config{
		Name:              "worker",
		Threshold:         RemoteThreshold,
		ResetTimeout:      RemoteResetTimeout,
		HalfOpenSuccesses: RemoteHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
