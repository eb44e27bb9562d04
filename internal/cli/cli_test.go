package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/spf13/viper"
)

const transcript = "My name is Ravi Kumar. I am calling from Lucknow, PIN 226001. " +
	"There is no water supply in our area for 3 days. Contact 9876543210."

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "cases.json")
	cfg := "store:\n  driver: json\n  path: " + storePath + "\n" +
		"cache:\n  enabled: false\n" +
		"log:\n  level: error\n"

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path, storePath
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	verbose = false
	structured = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	cfgPath, storePath := writeConfig(t)
	t.Setenv("GRIEVANCE_LOG_FORMAT", "json")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GRIEVANCE_SLOTFILL_PROVIDER", "openai")

	viper.Reset()
	cfgFile = cfgPath
	initConfig()
	defer func() { cfgFile = "" }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Path != storePath || cfg.Store.Driver != "json" {
		t.Errorf("Expected store from config file, got %+v", cfg.Store)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "error" {
		t.Errorf("Expected env to override log format, got %+v", cfg.Log)
	}
	if cfg.SlotFill.APIKey != "sk-test" {
		t.Errorf("Expected slot-fill key from OPENAI_API_KEY, got %q", cfg.SlotFill.APIKey)
	}
	if cfg.Match.Threshold != model.DefaultConfig().Match.Threshold {
		t.Errorf("Expected unset values to keep defaults, got threshold %v", cfg.Match.Threshold)
	}
}

func TestSubmitThenShow(t *testing.T) {
	cfgPath, storePath := writeConfig(t)

	out, err := runCLI(t, transcript, "submit", "--config", cfgPath)
	if err != nil {
		t.Fatalf("submit: %v\n%s", err, out)
	}
	var outcome model.Outcome
	if err := json.Unmarshal([]byte(out), &outcome); err != nil {
		t.Fatalf("decode outcome %q: %v", out, err)
	}
	if outcome.Status != model.OutcomeCreated {
		t.Fatalf("Expected created, got %+v", outcome)
	}
	if _, err := os.Stat(storePath); err != nil {
		t.Errorf("Expected case file written: %v", err)
	}

	out, err = runCLI(t, "", "cases", "show", outcome.CaseID, "--config", cfgPath)
	if err != nil {
		t.Fatalf("cases show: %v", err)
	}
	var c model.Case
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("decode case %q: %v", out, err)
	}
	if c.ID != outcome.CaseID || len(c.Thread) != 1 {
		t.Errorf("Unexpected case %+v", c)
	}

	if _, err := runCLI(t, "", "cases", "show", "missing", "--config", cfgPath); err == nil {
		t.Error("Expected error for unknown case")
	}
}

func TestScoreAndList(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	if out, err := runCLI(t, transcript, "submit", "--config", cfgPath); err != nil {
		t.Fatalf("submit: %v\n%s", err, out)
	}

	out, err := runCLI(t, "", "score", "--config", cfgPath)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// go-pretty upper-cases footers
	if !strings.Contains(out, "1 CASES") {
		t.Errorf("Expected score table footer, got:\n%s", out)
	}

	out, err = runCLI(t, "", "cases", "list", "--json", "--status", "open", "--config", cfgPath)
	if err != nil {
		t.Fatalf("cases list: %v", err)
	}
	var cases []model.Case
	if err := json.Unmarshal([]byte(out), &cases); err != nil {
		t.Fatalf("decode cases %q: %v", out, err)
	}
	if len(cases) != 1 || cases[0].Category == "" {
		t.Errorf("Expected one categorized case, got %+v", cases)
	}
}

func TestIntakeFromStdin(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := runCLI(t, "hello", "intake", "--config", cfgPath)
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	if !strings.Contains(out, `"complete": false`) || !strings.Contains(out, "May we have your name") {
		t.Errorf("Expected incomplete result with questions, got:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if _, err := runCLI(t, "", "config", "init", "--config", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "date_window_days: 2") {
		t.Errorf("Expected defaults in generated config, got:\n%s", data)
	}

	if _, err := runCLI(t, "", "config", "init", "--config", path); err == nil {
		t.Error("Expected error when config already exists")
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "grievance ") {
		t.Errorf("Unexpected version output %q", out)
	}
}
