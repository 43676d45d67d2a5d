package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config represents the optional safecp configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults. Nil means "not set".
type DefaultsConfig struct {
	ChunkSize  *string `toml:"chunk_size"`
	Verify     *bool   `toml:"verify"`
	Hash       *string `toml:"hash"`
	BWLimit    *string `toml:"bwlimit"`
	NoHardlink *bool   `toml:"no_hardlink"`
	Progress   *bool   `toml:"progress"`
}

// Load reads the config file at path. An empty path yields a zero Config.
// Unlike a missing default location, an explicitly named file must exist.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}
