package config

import "fmt"

// LoadFromEnv reads the process environment, after a local .env file in dev
// builds.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Load(FromEnviron())
}

func LoadTailFromEnv() (TailConfig, error) {
	if err := loadDotEnv(); err != nil {
		return TailConfig{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadTail(FromEnviron())
}
