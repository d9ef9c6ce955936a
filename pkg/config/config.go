// Package config holds the settings injected into every litekube component.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/retry"
	"github.com/chazu/litekube/pkg/wait"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "LITEKUBE"

// Keys understood by Load
const (
	KeyKubeconfig          = "kubeconfig"
	KeyNamespace           = "namespace"
	KeyWaitTimeout         = "wait-timeout"
	KeyPollInterval        = "poll-interval"
	KeyMaxWorkers          = "max-workers"
	KeySequentialThreshold = "sequential-threshold"
	KeyRetryAttempts       = "retry-attempts"
	KeyRetryDelay          = "retry-delay"
	KeySSHUser             = "ssh-user"
	KeySSHKeyPath          = "ssh-key-path"
)

// Config contains the settings shared by the resource clients
type Config struct {
	// Kubeconfig is the kubeconfig path; empty uses the standard lookup
	Kubeconfig string

	// DefaultNamespace is used when a call does not name a namespace
	// Default: "default"
	DefaultNamespace string

	// Wait configures the condition poller and batch waiter
	Wait wait.Config

	// Retry configures bounded retries
	Retry retry.Config

	// SSHUser is the login used by node command execution
	SSHUser string

	// SSHKeyPath is the private key used by node command execution
	SSHKeyPath string
}

// Default returns the default configuration
func Default() Config {
	return Config{
		DefaultNamespace: "default",
		Wait:             wait.DefaultConfig(),
		Retry:            retry.DefaultConfig(),
	}
}

// Validate checks the configuration for values no component can work with
func (c Config) Validate() error {
	var problems []string
	if c.DefaultNamespace == "" {
		problems = append(problems, "default namespace must not be empty")
	}
	if c.Wait.Timeout <= 0 {
		problems = append(problems, "wait timeout must be positive")
	}
	if c.Wait.PollInterval <= 0 {
		problems = append(problems, "poll interval must be positive")
	}
	if c.Wait.MaxWorkers <= 0 {
		problems = append(problems, "max workers must be positive")
	}
	if c.Wait.SequentialThreshold <= 0 {
		problems = append(problems, "sequential threshold must be positive")
	}
	if c.Retry.Attempts <= 0 {
		problems = append(problems, "retry attempts must be positive")
	}
	if c.Retry.Delay < 0 {
		problems = append(problems, "retry delay must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault(KeyNamespace, def.DefaultNamespace)
	v.SetDefault(KeyWaitTimeout, def.Wait.Timeout)
	v.SetDefault(KeyPollInterval, def.Wait.PollInterval)
	v.SetDefault(KeyMaxWorkers, def.Wait.MaxWorkers)
	v.SetDefault(KeySequentialThreshold, def.Wait.SequentialThreshold)
	v.SetDefault(KeyRetryAttempts, def.Retry.Attempts)
	v.SetDefault(KeyRetryDelay, def.Retry.Delay)
	v.SetDefault(KeyKubeconfig, "")
	v.SetDefault(KeySSHUser, "")
	v.SetDefault(KeySSHKeyPath, "")
}

// Load reads a Config from v, falling back to defaults for unset keys.
// Environment variables LITEKUBE_<KEY> (dashes replaced by underscores) are
// consulted automatically.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Kubeconfig:       v.GetString(KeyKubeconfig),
		DefaultNamespace: v.GetString(KeyNamespace),
		Wait: wait.Config{
			Timeout:             v.GetDuration(KeyWaitTimeout),
			PollInterval:        v.GetDuration(KeyPollInterval),
			MaxWorkers:          v.GetInt(KeyMaxWorkers),
			SequentialThreshold: v.GetInt(KeySequentialThreshold),
		},
		Retry: retry.Config{
			Attempts:  v.GetInt(KeyRetryAttempts),
			Delay:     v.GetDuration(KeyRetryDelay),
			Transient: kubeerr.NotFound,
		},
		SSHUser:    v.GetString(KeySSHUser),
		SSHKeyPath: v.GetString(KeySSHKeyPath),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WaitTimeout returns timeout when positive and the configured default otherwise
func (c Config) WaitTimeout(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return c.Wait.Timeout
}
