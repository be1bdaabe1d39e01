package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"speechkit/keyword"
	"speechkit/recorder"
	"speechkit/transcriber"
)

type DeepgramConfig struct {
	Model          string `yaml:"model"`
	Endpoint       string `yaml:"endpoint"`
	ProbeURL       string `yaml:"probe_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	ProbeTimeoutMS int    `yaml:"probe_timeout_ms"`
}

type RecorderConfig struct {
	Encoding    string `yaml:"encoding"`
	SampleRate  int    `yaml:"sample_rate"`
	Channels    int    `yaml:"channels"`
	Quality     string `yaml:"quality"`
	Destination string `yaml:"destination"`
}

type EngineConfig struct {
	Device          string `yaml:"device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	TapBufferFrames int    `yaml:"tap_buffer_frames"`
	RequestChunks   int    `yaml:"request_chunks"`
}

type KeywordConfig struct {
	Word  string `yaml:"word"`
	Color string `yaml:"color"`
}

type Config struct {
	// Language is a BCP 47 tag; empty means the system locale.
	Language        string          `yaml:"language"`
	Provider        string          `yaml:"provider"`
	Script          string          `yaml:"script"`
	Deepgram        DeepgramConfig  `yaml:"deepgram"`
	Recorder        RecorderConfig  `yaml:"recorder"`
	Engine          EngineConfig    `yaml:"engine"`
	MeterIntervalMS int             `yaml:"meter_interval_ms"`
	Keywords        []KeywordConfig `yaml:"keywords"`
	ConsentFile     string          `yaml:"consent_file"`
	Restricted      bool            `yaml:"restricted"`
}

func Default() Config {
	return Config{
		Provider: "deepgram",
		Deepgram: DeepgramConfig{
			Model:          "nova-3",
			Endpoint:       "wss://api.deepgram.com/v1/listen",
			ProbeURL:       "https://api.deepgram.com",
			APIKeyEnv:      "DEEPGRAM_API_KEY",
			ProbeTimeoutMS: 3000,
		},
		Recorder: RecorderConfig{
			Encoding:    "aac",
			SampleRate:  12000,
			Channels:    1,
			Quality:     "high",
			Destination: os.DevNull,
		},
		Engine: EngineConfig{
			SampleRate:      16000,
			Channels:        1,
			TapBufferFrames: 1024,
			RequestChunks:   128,
		},
		MeterIntervalMS: 9,
		Keywords: []KeywordConfig{
			{Word: "green", Color: "#00ff00"},
			{Word: "red", Color: "#ff0000"},
			{Word: "black", Color: "#000000"},
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if cfg.Language == "" {
		cfg.Language = SystemLanguage()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Language, "SPEECHKIT_LANGUAGE")
	overrideString(&cfg.Provider, "SPEECHKIT_PROVIDER")
	overrideString(&cfg.Script, "SPEECHKIT_SCRIPT")
	overrideString(&cfg.Deepgram.Model, "SPEECHKIT_DEEPGRAM_MODEL")
	overrideString(&cfg.Deepgram.Endpoint, "SPEECHKIT_DEEPGRAM_ENDPOINT")
	overrideString(&cfg.Deepgram.ProbeURL, "SPEECHKIT_DEEPGRAM_PROBE_URL")
	overrideString(&cfg.Deepgram.APIKeyEnv, "SPEECHKIT_DEEPGRAM_API_KEY_ENV")
	overrideInt(&cfg.Deepgram.ProbeTimeoutMS, "SPEECHKIT_DEEPGRAM_PROBE_TIMEOUT_MS")
	overrideString(&cfg.Recorder.Encoding, "SPEECHKIT_RECORDER_ENCODING")
	overrideInt(&cfg.Recorder.SampleRate, "SPEECHKIT_RECORDER_SAMPLE_RATE")
	overrideInt(&cfg.Recorder.Channels, "SPEECHKIT_RECORDER_CHANNELS")
	overrideString(&cfg.Recorder.Quality, "SPEECHKIT_RECORDER_QUALITY")
	overrideString(&cfg.Recorder.Destination, "SPEECHKIT_RECORDER_DESTINATION")
	overrideString(&cfg.Engine.Device, "SPEECHKIT_DEVICE")
	overrideInt(&cfg.Engine.SampleRate, "SPEECHKIT_ENGINE_SAMPLE_RATE")
	overrideInt(&cfg.Engine.Channels, "SPEECHKIT_ENGINE_CHANNELS")
	overrideInt(&cfg.Engine.TapBufferFrames, "SPEECHKIT_ENGINE_TAP_BUFFER_FRAMES")
	overrideInt(&cfg.Engine.RequestChunks, "SPEECHKIT_ENGINE_REQUEST_CHUNKS")
	overrideInt(&cfg.MeterIntervalMS, "SPEECHKIT_METER_INTERVAL_MS")
	overrideKeywords(&cfg.Keywords, "SPEECHKIT_KEYWORDS")
	overrideString(&cfg.ConsentFile, "SPEECHKIT_CONSENT_FILE")
	overrideBool(&cfg.Restricted, "SPEECHKIT_RESTRICTED")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

// overrideKeywords reads "word=#rrggbb,word=#rrggbb".
func overrideKeywords(target *[]KeywordConfig, envKey string) {
	value, ok := os.LookupEnv(envKey)
	if !ok {
		return
	}
	var out []KeywordConfig
	for _, part := range strings.Split(value, ",") {
		word, color, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || word == "" {
			continue
		}
		out = append(out, KeywordConfig{Word: word, Color: color})
	}
	if len(out) > 0 {
		*target = out
	}
}

func (c Config) Validate() error {
	switch c.Provider {
	case "deepgram", "fake":
	default:
		return fmt.Errorf("provider must be deepgram or fake, got %q", c.Provider)
	}
	if c.Provider == "fake" && c.Script != "" {
		if _, err := transcriber.ParseScript(c.Script); err != nil {
			return fmt.Errorf("script: %w", err)
		}
	}
	if _, err := c.RecorderSettings(); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	if c.Engine.SampleRate < 8000 || c.Engine.SampleRate > 48000 {
		return errors.New("engine.sample_rate must be between 8000 and 48000")
	}
	if c.Engine.Channels != 1 && c.Engine.Channels != 2 {
		return errors.New("engine.channels must be 1 or 2")
	}
	if c.Engine.TapBufferFrames <= 0 {
		return errors.New("engine.tap_buffer_frames must be positive")
	}
	if c.Engine.RequestChunks <= 0 {
		return errors.New("engine.request_chunks must be positive")
	}
	if c.MeterIntervalMS <= 0 {
		return errors.New("meter_interval_ms must be positive")
	}
	if c.Deepgram.ProbeTimeoutMS <= 0 {
		return errors.New("deepgram.probe_timeout_ms must be positive")
	}
	if _, err := c.KeywordTable(); err != nil {
		return fmt.Errorf("keywords: %w", err)
	}
	return nil
}

func (c Config) RecorderSettings() (recorder.Settings, error) {
	enc, err := recorder.ParseEncoding(c.Recorder.Encoding)
	if err != nil {
		return recorder.Settings{}, err
	}
	q, err := recorder.ParseQuality(c.Recorder.Quality)
	if err != nil {
		return recorder.Settings{}, err
	}
	if c.Recorder.SampleRate <= 0 || c.Recorder.Channels <= 0 {
		return recorder.Settings{}, errors.New("sample_rate and channels must be positive")
	}
	s := recorder.Settings{
		Encoding:    enc,
		SampleRate:  uint32(c.Recorder.SampleRate),
		Channels:    uint32(c.Recorder.Channels),
		Quality:     q,
		Destination: c.Recorder.Destination,
	}
	if err := s.Validate(); err != nil {
		return recorder.Settings{}, err
	}
	return s, nil
}

func (c Config) KeywordTable() (*keyword.Table, error) {
	actions := make([]keyword.Action, 0, len(c.Keywords))
	for _, k := range c.Keywords {
		color, err := keyword.ParseColor(k.Color)
		if err != nil {
			return nil, err
		}
		actions = append(actions, keyword.Action{Keyword: k.Word, Color: color})
	}
	return keyword.NewTable(actions)
}

func (c Config) MeterInterval() time.Duration {
	return time.Duration(c.MeterIntervalMS) * time.Millisecond
}

func (c Config) APIKey() string {
	if c.Deepgram.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Deepgram.APIKeyEnv)
}

func (c Config) DeepgramConfig() transcriber.DeepgramConfig {
	return transcriber.DeepgramConfig{
		APIKey:       c.APIKey(),
		Model:        c.Deepgram.Model,
		Endpoint:     c.Deepgram.Endpoint,
		ProbeURL:     c.Deepgram.ProbeURL,
		ProbeTimeout: time.Duration(c.Deepgram.ProbeTimeoutMS) * time.Millisecond,
	}
}

func (c Config) EngineFormat() transcriber.Format {
	return transcriber.Format{SampleRate: uint32(c.Engine.SampleRate), Channels: uint32(c.Engine.Channels)}
}

// SystemLanguage derives a language tag from LC_ALL, LC_MESSAGES or LANG.
func SystemLanguage() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" || strings.HasPrefix(v, "C.") {
			continue
		}
		return transcriber.NormalizeLanguage(v)
	}
	return "en-US"
}
