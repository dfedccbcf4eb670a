// Package config loads, normalizes, and validates the recipecast TOML
// configuration. Defaults live in defaults.go; sample_config.toml is the
// annotated file written by `recipecast config init`.
package config
