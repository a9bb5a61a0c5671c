// ABOUTME: .env file loading so secrets can live next to the config
// ABOUTME: Variables already present in the environment are never overwritten

package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads each existing file into the process environment.
// Missing files are skipped. Returns the paths that were loaded.
func LoadDotEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, path := range paths {
		err := godotenv.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("loading %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
