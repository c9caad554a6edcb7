// Package config provides a lightweight, map-backed configuration type
// with safe typed accessors and yaml/json/env loaders.
//
// It deliberately avoids struct binding: stage and provider settings are
// open-ended, and callers pull the keys they care about with defaults.
package config
