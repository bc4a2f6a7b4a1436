package config

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BRANCH_CODE", "BR-NORTH")
	t.Setenv("INVENTORY_BASE_URL", "https://inventory.example.com")
	t.Setenv("INVENTORY_API_TOKEN", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Scanner.Mode != "camera" {
		t.Errorf("expected camera as default scanner mode, got %q", cfg.Scanner.Mode)
	}
	if cfg.Scanner.BaudRate != 9600 {
		t.Errorf("expected 9600 baud default, got %d", cfg.Scanner.BaudRate)
	}
	if cfg.Scanner.CameraDecoderBin != "zbarcam" {
		t.Errorf("expected zbarcam default, got %q", cfg.Scanner.CameraDecoderBin)
	}
	if cfg.Reporting.RefreshSchedule != "@every 2m" {
		t.Errorf("unexpected default refresh schedule %q", cfg.Reporting.RefreshSchedule)
	}
	if cfg.Reporting.SnapshotSchedule != "0 20 * * *" {
		t.Errorf("unexpected default snapshot schedule %q", cfg.Reporting.SnapshotSchedule)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCANNER_MODE", "hid")
	t.Setenv("SCANNER_BAUD_RATE", "115200")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Scanner.Mode != "hid" {
		t.Errorf("expected hid mode, got %q", cfg.Scanner.Mode)
	}
	if cfg.Scanner.BaudRate != 115200 {
		t.Errorf("expected overridden baud rate, got %d", cfg.Scanner.BaudRate)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected overridden port, got %q", cfg.Server.Port)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("BRANCH_CODE", "")
	t.Setenv("INVENTORY_BASE_URL", "https://inventory.example.com")
	t.Setenv("INVENTORY_API_TOKEN", "secret")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error without BRANCH_CODE")
	}
}
