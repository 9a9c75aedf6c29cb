//go:build dev

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const dotEnvFile = ".env"

// loadDotEnv fills unset variables from .env; a missing file is not an error.
func loadDotEnv() error {
	if _, err := os.Stat(dotEnvFile); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	return godotenv.Load(dotEnvFile)
}
