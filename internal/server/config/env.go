package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// parseEnv overlays USERKEEPER_* environment variables onto config. A .env
// file in the working directory is loaded first when present; variables that
// are already set are not overridden by it.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
