// Package docs registers the OpenAPI document served under /api-docs.
package docs

import "github.com/swaggo/swag"

// @title           TaskFlow API
// @version         1.0
// @description     Task tracking API with users, tasks and audit logs.

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name Users
// @tag.description User management operations

// @tag.name Tasks
// @tag.description Task management operations

// @tag.name Auth
// @tag.description Sessions, tokens and registration

// @tag.name Audit
// @tag.description Read-only audit trail

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/api/v1/users": {
            "get": {
                "tags": ["Users"], "summary": "List users",
                "parameters": [
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            },
            "post": {
                "tags": ["Users"], "summary": "Create a user",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UserRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.SuccessBody"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorBody"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/api/v1/users/{id}": {
            "get": {
                "tags": ["Users"], "summary": "Get a user",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            },
            "patch": {
                "tags": ["Users"], "summary": "Update a user",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UserRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            },
            "delete": {
                "tags": ["Users"], "summary": "Soft-delete a user",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            }
        },
        "/api/v1/users/{id}/password_reset": {
            "post": {
                "tags": ["Users"], "summary": "Request a password reset",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            }
        },
        "/api/v1/tasks": {
            "get": {
                "tags": ["Tasks"], "summary": "List tasks",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "in_progress", "completed"]},
                    {"name": "user_id", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            },
            "post": {
                "tags": ["Tasks"], "summary": "Create a task",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TaskRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.SuccessBody"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorBody"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/api/v1/tasks/{id}": {
            "get": {
                "tags": ["Tasks"], "summary": "Get a task",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            },
            "patch": {
                "tags": ["Tasks"], "summary": "Update a task",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TaskRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            },
            "delete": {
                "tags": ["Tasks"], "summary": "Delete a task",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            }
        },
        "/api/v1/tasks/{id}/toggle_status": {
            "patch": {
                "tags": ["Tasks"], "summary": "Toggle task status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            }
        },
        "/api/v1/auth": {
            "post": {
                "tags": ["Auth"], "summary": "Log in",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            },
            "delete": {
                "tags": ["Auth"], "summary": "Log out",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Auth"], "summary": "Current user", "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/api/v1/registrations": {
            "post": {
                "tags": ["Auth"], "summary": "Register",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UserRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.SuccessBody"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorBody"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/response.ErrorBody"}}
                }
            }
        },
        "/api/v1/audit_logs": {
            "get": {
                "tags": ["Audit"], "summary": "List audit logs",
                "parameters": [
                    {"name": "resource_type", "in": "query", "type": "string", "enum": ["User", "Task"]},
                    {"name": "resource_id", "in": "query", "type": "integer"},
                    {"name": "user_id", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessBody"}}}
            }
        }
    },
    "definitions": {
        "response.SuccessBody": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "message": {"type": "string"},
                "meta": {"type": "object"}
            }
        },
        "response.ErrorBody": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "errors": {"type": "array", "items": {}},
                "meta": {"type": "object"}
            }
        },
        "UserRequest": {
            "type": "object",
            "properties": {
                "user": {
                    "type": "object",
                    "properties": {
                        "username": {"type": "string"},
                        "email": {"type": "string"},
                        "password": {"type": "string"},
                        "password_confirmation": {"type": "string"}
                    }
                }
            }
        },
        "TaskRequest": {
            "type": "object",
            "properties": {
                "task": {
                    "type": "object",
                    "properties": {
                        "title": {"type": "string"},
                        "description": {"type": "string"},
                        "status": {"type": "string", "enum": ["pending", "in_progress", "completed"]},
                        "user_id": {"type": "integer"}
                    }
                }
            }
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "login": {"type": "string"},
                "password": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "TaskFlow API",
	Description:      "Task tracking API with users, tasks and audit logs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
