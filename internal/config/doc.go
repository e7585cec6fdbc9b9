// Package config loads the static sickly configuration file (INI, or YAML with
// the same sections) and applies environment overrides with precedence:
// Environment variables > Config file. The file must provide the USER and
// SICKLY sections; anything missing is reported before the CLI does any work.
package config
