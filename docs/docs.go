// Package docs registers the bountyd API document with swag.
package docs

import "github.com/swaggo/swag"

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
        "BountySignature": {
            "type": "apiKey",
            "in": "header",
            "name": "X-Bounty-Signature",
            "description": "Hex BIP-340 signature over sha256(METHOD\\npath\\ntimestamp\\nhex(sha256(body))). Send X-Bounty-Identity and X-Bounty-Timestamp alongside."
        }
    },
    "paths": {
        "/healthz": {
            "get": {"tags": ["Health"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/api/registry": {
            "get": {"tags": ["Registry"], "summary": "Get registry", "responses": {"200": {"description": "OK"}, "409": {"description": "NotInitialized"}}},
            "post": {"tags": ["Registry"], "summary": "Initialize registry with the signer as authority", "security": [{"BountySignature": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "AlreadyInitialized"}}}
        },
        "/api/bounties": {
            "get": {
                "tags": ["Bounties"], "summary": "List bounties",
                "parameters": [
                    {"name": "sponsor", "in": "query", "type": "string"},
                    {"name": "worker", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["Open", "Accepted", "Submitted", "Confirmed", "Claimed", "Cancelled"]},
                    {"name": "offset", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Bounties"], "summary": "Create a bounty funded by the signer",
                "security": [{"BountySignature": []}],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBountyRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "InvalidAmount, TaskIdTooLong or TaskUrlTooLong"}, "422": {"description": "InsufficientFunds"}}
            }
        },
        "/api/bounties/by-task-hash/{hash}": {
            "get": {"tags": ["Bounties"], "summary": "Find bounty by task hash", "parameters": [{"name": "hash", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/bounties/{id}": {
            "get": {"tags": ["Bounties"], "summary": "Get bounty", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"200": {"description": "OK"}, "404": {"description": "BountyNotFound"}}}
        },
        "/api/bounties/{id}/vault": {
            "get": {"tags": ["Bounties"], "summary": "Vault address and balance", "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/bounties/{id}/qr": {
            "get": {"tags": ["Bounties"], "summary": "Vault QR code", "produces": ["image/png"], "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}], "responses": {"200": {"description": "PNG"}}}
        },
        "/api/bounties/{id}/{op}": {
            "post": {
                "tags": ["Bounties"], "summary": "Lifecycle transition",
                "security": [{"BountySignature": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "op", "in": "path", "required": true, "type": "string", "enum": ["accept", "submit", "confirm", "claim", "cancel"]},
                    {"name": "request", "in": "body", "schema": {"type": "object", "properties": {"worker": {"type": "string"}, "submission_url": {"type": "string"}}}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "UnauthorizedSponsor or UnauthorizedWorker"}, "409": {"description": "InvalidBountyStatus"}}
            }
        },
        "/api/events": {
            "get": {
                "tags": ["Events"], "summary": "List events",
                "parameters": [
                    {"name": "bounty_id", "in": "query", "type": "integer"},
                    {"name": "after", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/events/stream": {
            "get": {"tags": ["Events"], "summary": "Server-sent event stream", "produces": ["text/event-stream"], "responses": {"200": {"description": "stream"}}}
        },
        "/api/accounts/{address}/balance": {
            "get": {"tags": ["Accounts"], "summary": "Account balance", "parameters": [{"name": "address", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/accounts/{address}/fund": {
            "post": {"tags": ["Accounts"], "summary": "Development faucet", "parameters": [{"name": "address", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "faucet disabled"}}}
        }
    },
    "definitions": {
        "CreateBountyRequest": {
            "type": "object",
            "required": ["amount"],
            "properties": {
                "task_id": {"type": "string", "maxLength": 200},
                "task_url": {"type": "string", "maxLength": 500},
                "task_hash": {"type": "string", "description": "hex keccak-256"},
                "amount": {"type": "string", "description": "unsigned 64-bit integer"}
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
	Title:            "bountyd API",
	Description:      "Trustless task-bounty escrow.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
