package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads KEY=VALUE files from the working directory. Variables
// already present in the process environment win.
func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load environment file", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		slog.Debug("Loaded environment file", slog.String("file", name))
	}
}
