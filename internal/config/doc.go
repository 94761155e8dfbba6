// Package config loads, validates, and normalizes Partita configuration.
//
// Configuration is TOML, resolved from an explicit --config path, then
// ~/.config/partita/config.toml, then ./partita.toml. Load applies defaults
// first, so a missing file yields a runnable local setup. Paths are expanded
// (~ and relative segments) during normalization and tool timeouts are
// clamped to their floors here so downstream packages never re-check them.
package config
