// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {"get": {"tags": ["health"], "summary": "Readiness probe", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/healthz": {"get": {"tags": ["health"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}},
        "/theses": {
            "get": {
                "tags": ["theses"], "summary": "List theses", "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "institution_id", "in": "query"},
                    {"type": "integer", "default": 10, "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ThesisList"}}}
            },
            "post": {
                "tags": ["theses"], "summary": "Submit a thesis", "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "name": "title", "in": "formData", "required": true},
                    {"type": "string", "name": "institution_id", "in": "formData", "required": true},
                    {"type": "string", "name": "authors", "in": "formData", "required": true, "description": "JSON array of {name,email}"},
                    {"type": "string", "name": "summary", "in": "formData"},
                    {"type": "string", "name": "keywords", "in": "formData", "description": "comma separated"},
                    {"type": "string", "name": "digest_algorithm", "in": "formData", "enum": ["sha256", "sha3-256"]}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Thesis"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Duplicate file", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/theses/{id}": {
            "get": {"tags": ["theses"], "summary": "Get a thesis", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Thesis"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}}},
            "delete": {"tags": ["theses"], "summary": "Delete a thesis", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "409": {"description": "Anchored theses cannot be deleted", "schema": {"$ref": "#/definitions/Error"}}}}
        },
        "/theses/{id}/events": {"get": {"tags": ["theses"], "summary": "Audit trail", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/theses/{id}/verification": {"post": {"tags": ["lifecycle"], "summary": "Institution verification", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Thesis"}}}}},
        "/theses/{id}/certify": {"post": {"tags": ["lifecycle"], "summary": "Certify a thesis", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Thesis"}}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Error"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/Error"}}, "503": {"description": "Ledger unavailable or confirmation pending", "schema": {"$ref": "#/definitions/Error"}}}}},
        "/theses/{id}/reject": {"post": {"tags": ["lifecycle"], "summary": "Reject a thesis", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Thesis"}}}}},
        "/theses/{id}/revoke": {"post": {"tags": ["lifecycle"], "summary": "Revoke a certification", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Thesis"}}}}},
        "/theses/{id}/onchain": {"get": {"tags": ["verification"], "summary": "Ledger status", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/certificates/{ref}": {"get": {"tags": ["verification"], "summary": "Verify a certificate by thesis id, digest or tx hash", "parameters": [{"type": "string", "name": "ref", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Certificate"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}, "422": {"description": "Integrity warning", "schema": {"$ref": "#/definitions/Error"}}}}},
        "/certificates/verify-file": {"post": {"tags": ["verification"], "summary": "Verify a file", "consumes": ["multipart/form-data"], "parameters": [{"type": "file", "name": "file", "in": "formData", "required": true}, {"type": "string", "name": "algorithm", "in": "formData"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Certificate"}}}}}
    },
    "definitions": {
        "Error": {"type": "object", "properties": {"request_id": {"type": "string"}, "error": {"type": "object", "properties": {"code": {"type": "string"}, "message": {"type": "string"}}}}},
        "Thesis": {"type": "object", "properties": {
            "id": {"type": "string"}, "title": {"type": "string"}, "status": {"type": "string", "enum": ["pending", "institution_verified", "certified", "rejected"]},
            "digest": {"type": "string"}, "digest_algorithm": {"type": "string"}, "content_id": {"type": "string"},
            "institution_id": {"type": "string"}, "uploaded_by": {"type": "string"},
            "tx_hash": {"type": "string"}, "chain_id": {"type": "integer"}, "block_number": {"type": "integer"},
            "revoked_at": {"type": "string"}, "revoked_by": {"type": "string"}, "version": {"type": "integer"}
        }},
        "ThesisList": {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/Thesis"}}, "total": {"type": "integer"}}},
        "Certificate": {"type": "object", "properties": {
            "thesis_id": {"type": "string"}, "digest": {"type": "string"}, "content_id": {"type": "string"},
            "tx_hash": {"type": "string"}, "chain_id": {"type": "integer"}, "block_number": {"type": "integer"},
            "status": {"type": "string"}, "revoked": {"type": "boolean"}, "on_ledger": {"type": "boolean"},
            "consistent": {"type": "boolean"}, "mismatches": {"type": "array", "items": {"type": "string"}}
        }}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Thesis Certification API",
	Description:      "Upload, institutional sign-off, ledger anchoring and public verification of theses.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
