package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://dn:dn@localhost:5432/dn")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_CREDENTIALS", `{"type":"service_account"}`)
	t.Setenv("GOOGLE_SPREADSHEET_URL", "https://docs.google.com/spreadsheets/d/1AbC-_xyz/edit#gid=0")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetSpreadsheetID() != "1AbC-_xyz" {
		t.Fatalf("expected spreadsheet id from url, got %q", cfg.GetSpreadsheetID())
	}
	if cfg.GetSyncInterval() != 300*time.Second {
		t.Fatalf("expected 300s sync interval, got %s", cfg.GetSyncInterval())
	}
	if cfg.GetSheetPrefix() != "Plan MOS" {
		t.Fatalf("expected default sheet prefix, got %q", cfg.GetSheetPrefix())
	}
	if !cfg.GetCORSAllowAll() {
		t.Fatal("expected wildcard origins to allow all")
	}
}

func TestLoadReportsAllMissingVariables(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_CREDENTIALS", "")
	t.Setenv("GOOGLE_SPREADSHEET_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	want := "missing env variables: DATABASE_URL, GOOGLE_SERVICE_ACCOUNT_CREDENTIALS, GOOGLE_SPREADSHEET_URL, JWT_ACCESS_SECRET"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestRequireSSLAppendsOnlyWhenAbsent(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_REQUIRE_SSL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(cfg.GetDatabaseURL(), "sslmode=require") {
		t.Fatalf("expected sslmode=require, got %q", cfg.GetDatabaseURL())
	}

	already := "postgres://dn@localhost/dn?sslmode=disable"
	if got := requireSSL(already); got != already {
		t.Fatalf("expected url unchanged, got %q", got)
	}
}

func TestSpreadsheetIDFromURL(t *testing.T) {
	cases := map[string]string{
		"https://docs.google.com/spreadsheets/d/abc123/edit": "abc123",
		"abc123":                      "abc123",
		"https://example.com/foo/bar": "",
		"":                            "",
	}
	for in, want := range cases {
		if got := SpreadsheetIDFromURL(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}
