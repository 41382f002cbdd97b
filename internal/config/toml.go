// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Test TestSection `toml:"test"`
}

// TestSection maps typing test settings. Nil fields are unset.
type TestSection struct {
	Lang      *string  `toml:"lang"`
	Mode      *string  `toml:"mode"`
	Backend   *string  `toml:"backend"`
	StorePath *string  `toml:"store-path"`
	Texts     *string  `toml:"texts"`
	User      *string  `toml:"user"`
	Wordlist  *string  `toml:"wordlist"`
	Words     *int     `toml:"words"`
	Caps      *float64 `toml:"caps"`
	Punct     *float64 `toml:"punct"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// WriteDefault writes a commented sample config to path unless it already exists.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}

const sampleConfig = `[test]
# lang = "en"
# mode = "char"        # char or word
# backend = "json"     # memory, text, json or sqlite
# store-path = ""
# texts = ""           # one text per line
# user = ""
# wordlist = ""        # one word per line; composes random texts instead of passages
# words = 25           # words per composed text
# caps = 0.0           # probability of a capitalised word (0-1)
# punct = 0.0          # probability of trailing punctuation (0-1)
`
