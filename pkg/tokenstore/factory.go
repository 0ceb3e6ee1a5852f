package tokenstore

import (
	"fmt"

	"github.com/transitwatch/transitwatch/pkg/config"
)

// NewStore creates a token store based on the configuration. The default
// path is used when the config does not override the token file location.
func NewStore(cfg config.StorageConfig, defaultPath string) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil

	case "file", "":
		path := cfg.TokenFile
		if path == "" {
			path = defaultPath
		}
		return NewFileStore(path)

	default:
		return nil, fmt.Errorf("unknown token storage type: %s", cfg.Type)
	}
}
