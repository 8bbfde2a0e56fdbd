// Package config loads typed configuration from the environment.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
//
//   - Load parses environment variables into a struct using env tags and
//     caches the result per type for the lifetime of the process.
//   - LoadFile does the same with a YAML base file underneath the
//     environment; the file maps env keys to values.
//   - LoadEnv loads one or more .env files into the process environment.
//   - Must* variants panic, for configuration the process cannot start without.
//
// Precedence is process environment, then the YAML file, then envDefault.
//
//	type QueueConfig struct {
//	    Driver string   `env:"QUEUE_DRIVER" envDefault:"memory"`
//	    Queues []string `env:"QUEUE_NAMES" envSeparator:"," envDefault:"mail"`
//	}
//
//	var cfg QueueConfig
//	if err := config.LoadFile("config.yaml", &cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// ResetCache and ForceReloadConfig exist for tests that change the
// environment between loads.
package config
