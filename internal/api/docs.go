package api

import _ "embed"

// openAPISpec is the static OpenAPI document served to the Swagger UI.
//
//go:embed openapi.json
var openAPISpec []byte
