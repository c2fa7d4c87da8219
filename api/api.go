// Package api embeds the portal's OpenAPI description.
package api

import _ "embed"

//go:embed openapi.yml
var OpenAPI []byte
