// Package config loads and merges mrscan configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (GITLAB_TOKEN, REVIEW_ENABLED, MRSCAN_WORKERS, etc.),
//     including any set by a .env file in the working directory
//  3. Config file ($XDG_CONFIG_HOME/mrscan/config.json)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write it back, and
// [SetField] to update a single key.
package config
