//go:generate go run ../build/gen-config-schema.go schema.json

// Package config exposes the generated JSON schema for the protodeps
// configuration file. Regenerate schema.json with go generate after
// changing the structures in internal/config.
package config

import (
	_ "embed"
)

//go:embed "schema.json"
var schema []byte

func Schema() []byte {
	return schema
}
