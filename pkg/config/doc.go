// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv for optional .env files with
// github.com/caarlos0/env/v11 for struct parsing:
//
//	type StorageConfig struct {
//		Bucket string `env:"S3_BUCKET,required"`
//		Region string `env:"S3_REGION" envDefault:"us-east-1"`
//	}
//
//	var cfg StorageConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Parsed values are cached per type and prefix, so repeated Load calls from
// different commands are cheap. LoadEnv reads extra files and invalidates the
// cache; Reset clears it in tests.
package config
