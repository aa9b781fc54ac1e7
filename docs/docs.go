package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "CRM Insights",
    "description": "Conversation aggregation, filtering and sales analytics over CRM message events",
    "version": "1.0"
  },
  "basePath": "/",
  "securityDefinitions": {
    "ApiKey": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
  },
  "paths": {
    "/api/state": {
      "get": {"tags": ["session"], "summary": "Session state", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
      "patch": {
        "tags": ["session"], "summary": "Update filters", "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"in": "body", "name": "patch", "required": true, "schema": {"type": "object"}}],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid filter values"}}
      }
    },
    "/api/refresh": {
      "post": {"tags": ["conversations"], "summary": "Refresh conversations", "responses": {"200": {"description": "OK"}, "502": {"description": "Upstream error"}}}
    },
    "/api/conversations": {
      "get": {"tags": ["conversations"], "summary": "Conversation list", "responses": {"200": {"description": "OK"}, "502": {"description": "Upstream error"}}}
    },
    "/api/conversations/{id}/messages": {
      "get": {
        "tags": ["conversations"], "summary": "Conversation messages",
        "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "Conversation not found"}}
      }
    },
    "/api/dashboard": {
      "get": {
        "tags": ["dashboard"], "summary": "Analytics dashboard",
        "parameters": [
          {"in": "query", "name": "date_from", "type": "string"},
          {"in": "query", "name": "date_to", "type": "string"},
          {"in": "query", "name": "preset", "type": "string", "enum": ["week", "month", "quarter"]},
          {"in": "query", "name": "vendedor", "type": "string"},
          {"in": "query", "name": "selected", "type": "string"}
        ],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid query parameters"}}
      }
    },
    "/api/dashboard/vendors/{vendor}/breakdown": {
      "get": {
        "tags": ["dashboard"], "summary": "Vendor contact breakdown",
        "parameters": [
          {"in": "path", "name": "vendor", "type": "string", "required": true},
          {"in": "query", "name": "date_from", "type": "string"},
          {"in": "query", "name": "date_to", "type": "string"},
          {"in": "query", "name": "preset", "type": "string"}
        ],
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/api/export.csv": {
      "get": {"tags": ["conversations"], "summary": "Export conversations", "produces": ["text/csv"], "responses": {"200": {"description": "CSV"}}}
    }
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
