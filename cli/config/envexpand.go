// Package config handles YAML config file loading for haul run.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// - ${VAR} expands to the env var value, or empty string if unset
// - ${VAR:-default} expands to the env var value, or "default" if unset/empty
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} patterns in the input string
// with their corresponding environment variable values.
//
// Unset variables without defaults expand to empty string (not an error).
// Required values then fail downstream validation, e.g. an empty adapter URL.
func ExpandEnv(input string) string {
	out, _ := expand(input)
	return out
}

// expand performs ExpandEnv and also returns the names of variables that
// expanded to nothing.
func expand(input string) (string, []string) {
	var unresolved []string
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]

		if value := os.Getenv(name); value != "" {
			return value
		}
		if def == "" {
			unresolved = append(unresolved, name)
		}
		return def
	})
	return out, unresolved
}
