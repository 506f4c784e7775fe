// Package config handles configuration loading, parsing, and validation
// from environment variables, dotenv files, and an optional YAML file. It
// provides type-safe access to the snapshot cache, database, authentication,
// and blob storage settings used by the functional test kit.
package config
