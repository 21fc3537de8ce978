// Package config loads, validates, and normalizes grabit's TOML configuration.
//
// Configuration resolves from an explicit --config path, then
// ~/.config/grabit/config.toml, then ./grabit.toml, falling back to built-in
// defaults when no file exists. All path values are tilde-expanded and made
// absolute during normalization.
package config
