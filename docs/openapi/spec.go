// Package openapi embeds the zonecore HTTP API description for runtime
// distribution.
package openapi

import _ "embed"

// APISpec contains the OpenAPI document for the engine's HTTP surface.
//
//go:embed zonecore.yaml
var APISpec []byte

// Spec returns a defensive copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), APISpec...)
}
