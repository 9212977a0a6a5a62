package config

import (
	"os"
	"path/filepath"
	"testing"

	"creditnet/crypto"
	nativecommon "creditnet/native/common"
)

func testAddress(t *testing.T, suffix byte) crypto.Address {
	t.Helper()
	raw := make([]byte, 20)
	raw[19] = suffix
	return crypto.NewAddress(crypto.CreditPrefix, raw)
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "Environment = \"prod\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "prod" {
		t.Fatalf("expected prod environment, got %q", cfg.Environment)
	}
	if cfg.ListenAddress != Default().ListenAddress {
		t.Fatalf("expected default listen address, got %q", cfg.ListenAddress)
	}
	if cfg.DataDir == "" {
		t.Fatalf("expected default data dir")
	}
}

func TestLoadFullConfig(t *testing.T) {
	reporter := testAddress(t, 0x01)
	treasury := testAddress(t, 0x02)
	contents := `
ListenAddress = "0.0.0.0:9000"
DataDir = "/var/lib/creditd"
ModuleAddress = "` + treasury.String() + `"

[roles]
PnLReporters = ["` + reporter.String() + `"]

[pauses]
Gauges = true
`
	cfg, err := Load(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	roles, err := cfg.BuildRoles()
	if err != nil {
		t.Fatalf("build roles: %v", err)
	}
	if !roles.HasRole(nativecommon.RolePnLReporter, reporter) {
		t.Fatalf("expected reporter role granted")
	}
	if roles.HasRole(nativecommon.RoleSharingAdmin, reporter) {
		t.Fatalf("unexpected sharing admin grant")
	}

	pauses := cfg.BuildPauses()
	if !pauses.IsPaused("gauges") {
		t.Fatalf("expected gauges paused")
	}
	if pauses.IsPaused("pnl") || pauses.IsPaused("token") {
		t.Fatalf("unexpected pauses: %+v", pauses)
	}
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	if _, err := Load(writeConfig(t, "ModuleAddress = \"not-an-address\"\n")); err == nil {
		t.Fatalf("expected module address rejection")
	}
	contents := `
[roles]
Minters = ["bogus"]
`
	if _, err := Load(writeConfig(t, contents)); err == nil {
		t.Fatalf("expected role address rejection")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := Default()
	cfg.ListenAddress = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected listen address requirement")
	}
	cfg = Default()
	cfg.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected data dir requirement")
	}
}
