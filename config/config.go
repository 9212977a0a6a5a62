package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"creditnet/crypto"
	nativecommon "creditnet/native/common"
)

// Config is the daemon's runtime configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`
	// ModuleAddress is the treasury account holding pre-minted gains and the
	// surplus buffer.
	ModuleAddress string `toml:"ModuleAddress"`
	Roles         Roles  `toml:"roles"`
	Pauses        Pauses `toml:"pauses"`
}

// Roles lists the addresses granted each named permission.
type Roles struct {
	PnLReporters    []string `toml:"PnLReporters"`
	SharingAdmins   []string `toml:"SharingAdmins"`
	ReserveManagers []string `toml:"ReserveManagers"`
	Minters         []string `toml:"Minters"`
}

// Pauses lists the halted modules.
type Pauses struct {
	PnL    bool `toml:"PnL"`
	Gauges bool `toml:"Gauges"`
	Token  bool `toml:"Token"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		ListenAddress: "127.0.0.1:8645",
		DataDir:       "./creditd-data",
		Environment:   "dev",
	}
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks addresses decode and required fields are present.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil configuration")
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return errors.New("config: ListenAddress must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: DataDir must be set")
	}
	if strings.TrimSpace(c.ModuleAddress) != "" {
		if _, err := crypto.DecodeAddress(c.ModuleAddress); err != nil {
			return fmt.Errorf("config: ModuleAddress: %w", err)
		}
	}
	for _, list := range [][]string{
		c.Roles.PnLReporters,
		c.Roles.SharingAdmins,
		c.Roles.ReserveManagers,
		c.Roles.Minters,
	} {
		for _, addr := range list {
			if _, err := crypto.DecodeAddress(addr); err != nil {
				return fmt.Errorf("config: role address %q: %w", addr, err)
			}
		}
	}
	return nil
}

// BuildRoles materialises the static role table from the configured lists.
func (c *Config) BuildRoles() (*nativecommon.StaticRoles, error) {
	roles := nativecommon.NewStaticRoles()
	grant := func(role string, list []string) error {
		for _, raw := range list {
			addr, err := crypto.DecodeAddress(raw)
			if err != nil {
				return fmt.Errorf("config: role address %q: %w", raw, err)
			}
			roles.Grant(role, addr)
		}
		return nil
	}
	if err := grant(nativecommon.RolePnLReporter, c.Roles.PnLReporters); err != nil {
		return nil, err
	}
	if err := grant(nativecommon.RoleSharingAdmin, c.Roles.SharingAdmins); err != nil {
		return nil, err
	}
	if err := grant(nativecommon.RoleReserveManager, c.Roles.ReserveManagers); err != nil {
		return nil, err
	}
	if err := grant(nativecommon.RoleTokenMinter, c.Roles.Minters); err != nil {
		return nil, err
	}
	return roles, nil
}

// BuildPauses materialises the pause view from the configured switches.
func (c *Config) BuildPauses() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{
		"pnl":    c.Pauses.PnL,
		"gauges": c.Pauses.Gauges,
		"token":  c.Pauses.Token,
	}
}
