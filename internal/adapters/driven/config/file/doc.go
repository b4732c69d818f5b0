// Package file provides the TOML file behind the config commands.
//
// The store keeps values flattened to dot-notation keys in memory and
// writes them back as nested tables, so the file stays readable by the
// viper loader in the parent package.
package file
