// Package config loads env-tagged structs with github.com/caarlos0/env,
// reading dotenv files through github.com/joho/godotenv first.
//
//	var cfg flagcache.Config
//	if err := config.Load(&cfg, config.WithEnvFiles(".env.local")); err != nil {
//		return err
//	}
//
// WithEnviron replaces the process environment, which keeps tests hermetic.
package config
