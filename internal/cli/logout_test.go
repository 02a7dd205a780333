package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogoutClearsKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := CLIConfig{APIKey: "pf_testkey123", ServerURL: "http://myhost:9090", PageSize: 10}
	if err := saveConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := runLogout(&bytes.Buffer{}); err != nil {
		t.Fatalf("logout: %v", err)
	}

	loaded, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.APIKey != "" {
		t.Errorf("api_key = %q, want empty after logout", loaded.APIKey)
	}
	if loaded.ServerURL != "http://myhost:9090" || loaded.PageSize != 10 {
		t.Errorf("other settings lost: %+v", loaded)
	}
}

func TestLogoutWhenNotLoggedIn(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	if err := runLogout(&out); err != nil {
		t.Fatalf("logout with no config: %v", err)
	}
	if !strings.Contains(out.String(), "Not logged in.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestLogoutWarnsAboutEnvKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PF_API_KEY", "pf_fromenv")

	if err := saveConfig(CLIConfig{APIKey: "pf_stored"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out bytes.Buffer
	if err := runLogout(&out); err != nil {
		t.Fatalf("logout: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Forgot API key for "+defaultServerURL) {
		t.Errorf("output = %q, want default server named", got)
	}
	if !strings.Contains(got, "PF_API_KEY is still set") {
		t.Errorf("output = %q, want env warning", got)
	}
}
