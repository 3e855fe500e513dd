// Package config loads application settings from defaults, an optional
// YAML file, a .env file, TASKMGR_ environment variables and command-line
// flags, in increasing order of precedence, and validates the result.
package config
