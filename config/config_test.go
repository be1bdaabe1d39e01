package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"speechkit/keyword"
	"speechkit/recorder"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPEECHKIT_LANGUAGE", "en-US")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := cfg.RecorderSettings()
	if err != nil {
		t.Fatal(err)
	}
	if s != recorder.MeteringSettings() {
		t.Fatalf("default recorder settings = %+v", s)
	}
	if cfg.MeterInterval() != 9*time.Millisecond {
		t.Fatalf("meter interval = %v", cfg.MeterInterval())
	}
	if cfg.Engine.TapBufferFrames != 1024 {
		t.Fatalf("tap buffer = %d", cfg.Engine.TapBufferFrames)
	}
	table, err := cfg.KeywordTable()
	if err != nil {
		t.Fatal(err)
	}
	if a, ok := table.Match("RED"); !ok || a.Color != keyword.Red {
		t.Fatalf("default table missing red")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechkit.yaml")
	data := `
language: fr-FR
provider: fake
script: rouge@0.5
recorder:
  encoding: flac
  destination: /tmp/out.flac
keywords:
  - word: rouge
    color: "#ff0000"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Language != "fr-FR" || cfg.Provider != "fake" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Recorder.SampleRate != 12000 {
		t.Fatalf("unset fields should keep defaults, got %d", cfg.Recorder.SampleRate)
	}
	table, _ := cfg.KeywordTable()
	if table.Len() != 1 {
		t.Fatalf("keywords replaced from file, got %d", table.Len())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPEECHKIT_LANGUAGE", "de-DE")
	t.Setenv("SPEECHKIT_PROVIDER", "fake")
	t.Setenv("SPEECHKIT_METER_INTERVAL_MS", "20")
	t.Setenv("SPEECHKIT_ENGINE_SAMPLE_RATE", "48000")
	t.Setenv("SPEECHKIT_KEYWORDS", "blue=#0000ff, yellow=#ffff00")
	t.Setenv("SPEECHKIT_RESTRICTED", "true")
	t.Setenv("SPEECHKIT_DEEPGRAM_API_KEY_ENV", "MY_DG_KEY")
	t.Setenv("MY_DG_KEY", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Language != "de-DE" || cfg.Provider != "fake" {
		t.Fatalf("expected language/provider override")
	}
	if cfg.MeterInterval() != 20*time.Millisecond {
		t.Fatalf("expected meter interval override")
	}
	if cfg.Engine.SampleRate != 48000 {
		t.Fatalf("expected engine sample rate override")
	}
	if len(cfg.Keywords) != 2 || cfg.Keywords[1].Word != "yellow" {
		t.Fatalf("expected keyword override, got %+v", cfg.Keywords)
	}
	if !cfg.Restricted {
		t.Fatal("expected restricted override")
	}
	if cfg.DeepgramConfig().APIKey != "secret" {
		t.Fatal("expected api key from configured env var")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.Provider = "whisper" }, "provider"},
		{"aac file", func(c *Config) { c.Recorder.Destination = "/tmp/out.m4a" }, "recorder"},
		{"encoding", func(c *Config) { c.Recorder.Encoding = "opus" }, "recorder"},
		{"engine rate", func(c *Config) { c.Engine.SampleRate = 1 }, "engine.sample_rate"},
		{"meter", func(c *Config) { c.MeterIntervalMS = 0 }, "meter_interval_ms"},
		{"color", func(c *Config) { c.Keywords[0].Color = "green" }, "keywords"},
		{"script", func(c *Config) { c.Provider = "fake"; c.Script = "red" }, "script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Language = "en-US"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSystemLanguage(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "pt_BR.UTF-8")
	if got := SystemLanguage(); got != "pt-BR" {
		t.Errorf("SystemLanguage = %q, want pt-BR", got)
	}
	t.Setenv("LANG", "C.UTF-8")
	if got := SystemLanguage(); got != "en-US" {
		t.Errorf("SystemLanguage = %q, want en-US", got)
	}
}
