// Package config loads speakerdash settings from a TOML file, an optional
// .env file and SPEAKERDASH_* environment variables, in increasing order of
// precedence.
package config
