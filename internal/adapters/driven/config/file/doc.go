// Package file implements the config store as a TOML file in the user's
// knowhub directory.
package file
