package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/inkday/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDiaryConfig_Validate(t *testing.T) {
	cases := []struct {
		cfg DiaryConfig
		ok  bool
	}{
		{DiaryConfig{Dir: "./diary", File: "diary.md"}, true},
		{DiaryConfig{Dir: "./diary", File: "archive/2024.md"}, true},
		{DiaryConfig{Dir: "", File: "diary.md"}, false},
		{DiaryConfig{Dir: "./diary", File: ""}, false},
		{DiaryConfig{Dir: "./diary", File: "diary.txt"}, false},
		{DiaryConfig{Dir: "./diary", File: "../escape.md"}, false},
		{DiaryConfig{Dir: "./diary", File: "/abs/diary.md"}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("Validate(%+v) = %v, want ok=%v", tc.cfg, err, tc.ok)
		}
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.App.HTTP.Address() != ":8080" {
		t.Errorf("address = %q", cfg.App.HTTP.Address())
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("INKDAY_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
  http:
    port: 9090
diary:
  dir: /tmp/inkday
  file: journal.md
sqlite:
  path: /tmp/inkday.db
auth:
  mode: token
  token: ${INKDAY_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Diary.File != "journal.md" || !cfg.Diary.Watch {
		t.Errorf("diary = %+v, watch should keep its default", cfg.Diary)
	}
	if cfg.Auth.Token != "from-env" {
		t.Errorf("token = %q, want env expansion", cfg.Auth.Token)
	}
}
