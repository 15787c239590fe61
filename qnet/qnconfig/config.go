// Package qnconfig loads the QNET_* environment configuration (spec.md §6)
// into an immutable snapshot, following the teacher's pattern of a
// process-wide config object installed once at startup and only ever
// replaced wholesale via a copy-on-write pointer swap (spec.md §9).
package qnconfig

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/qnet-project/qnet-core/qnet/qnerrors"
)

// Network selects endpoints and chain id.
type Network string

const (
	NetworkTestnet Network = "testnet"
	NetworkMainnet Network = "mainnet"
	NetworkLocal   Network = "local"
)

// Config is an immutable configuration snapshot. Never mutate a live
// *Config; build a new one and Store it.
type Config struct {
	MicroBlockInterval time.Duration
	ActivationCode     string
	BootstrapID        int // 0 means "not a bootstrap node"
	Network            Network
	Hostname           string
}

var current atomic.Pointer[Config]

// Load reads QNET_* environment variables into a new Config and installs it
// as the current snapshot, returning it. It never mutates a config another
// goroutine may be holding a pointer to.
func Load() (*Config, error) {
	cfg := &Config{
		MicroBlockInterval: time.Second,
		Network:            NetworkTestnet,
	}

	if v := os.Getenv("QNET_MICROBLOCK_INTERVAL"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, qnerrors.Wrap(qnerrors.KindValidation, "BadConfig",
				"QNET_MICROBLOCK_INTERVAL must be an integer", err)
		}
		if secs < 1 {
			return nil, qnerrors.New(qnerrors.KindValidation, "BadConfig",
				"QNET_MICROBLOCK_INTERVAL must be >= 1 second")
		}
		cfg.MicroBlockInterval = time.Duration(secs) * time.Second
	}

	if v := os.Getenv("QNET_BOOTSTRAP_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 1 || id > 5 {
			return nil, qnerrors.New(qnerrors.KindValidation, "BadConfig",
				fmt.Sprintf("QNET_BOOTSTRAP_ID must be 001..005, got %q", v))
		}
		cfg.BootstrapID = id
	}

	cfg.ActivationCode = os.Getenv("QNET_ACTIVATION_CODE")
	if cfg.ActivationCode == "" && cfg.BootstrapID != 0 {
		cfg.ActivationCode = genesisCodeFor(cfg.BootstrapID)
	}

	if v := os.Getenv("QNET_NETWORK"); v != "" {
		switch Network(v) {
		case NetworkTestnet, NetworkMainnet, NetworkLocal:
			cfg.Network = Network(v)
		default:
			return nil, qnerrors.New(qnerrors.KindValidation, "BadConfig",
				fmt.Sprintf("QNET_NETWORK must be testnet|mainnet|local, got %q", v))
		}
	}

	cfg.Hostname = os.Getenv("HOSTNAME")

	current.Store(cfg)
	return cfg, nil
}

// Current returns the last snapshot installed by Load, or nil if Load has
// never been called.
func Current() *Config {
	return current.Load()
}

func genesisCodeFor(id int) string {
	return fmt.Sprintf("QNET-BOOT-%04d-STRAP", id)
}
