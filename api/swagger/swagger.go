package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable API",
        "description": "Timetable conflict detection and scheduling service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Timetable", "description": "Entries, conflicts and exports"},
        {"name": "Semesters", "description": "Semester lifecycle"},
        {"name": "Alerts", "description": "Upcoming class reminders"},
        {"name": "Ops", "description": "Metrics"}
    ],
    "paths": {
        "/timetables": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List timetable entries",
                "parameters": [
                    {"name": "teacher", "in": "query", "type": "string"},
                    {"name": "classroom", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "day", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["active", "inactive", "all"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetable"],
                "summary": "Propose a timetable entry",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProposeEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid time range, day or reference", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Classroom or teacher conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Timetable"],
                "summary": "Update several entries",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchUpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-item results", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "delete": {
                "tags": ["Timetable"],
                "summary": "Deactivate an entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/upcoming": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Entries starting soon",
                "parameters": [
                    {"name": "semester", "in": "query", "required": true, "type": "string"},
                    {"name": "horizon", "in": "query", "required": true, "type": "integer"},
                    {"name": "now", "in": "query", "type": "string", "format": "date-time"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Export entries",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/calendar"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx", "ics"]},
                    {"name": "semester", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Document", "schema": {"type": "file"}}
                }
            }
        },
        "/semesters": {
            "get": {
                "tags": ["Semesters"],
                "summary": "List semesters",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Semesters"],
                "summary": "Create a semester",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSemesterRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/semesters/active": {
            "get": {
                "tags": ["Semesters"],
                "summary": "Get the active semester",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active semester", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/semesters/{id}": {
            "get": {
                "tags": ["Semesters"],
                "summary": "Get a semester",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/semesters/{id}/activate": {
            "post": {
                "tags": ["Semesters"],
                "summary": "Make a semester the active one",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/alerts/run": {
            "post": {
                "tags": ["Alerts"],
                "summary": "Run an alert sweep now",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Ops"],
                "summary": "Metrics summary",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "ProposeEntryRequest": {
            "type": "object",
            "required": ["teacher", "subject", "classroom", "semester", "day_of_week", "start_time", "end_time"],
            "properties": {
                "teacher": {"type": "string"},
                "subject": {"type": "string"},
                "classroom": {"type": "string"},
                "semester": {"type": "string"},
                "day_of_week": {"type": "string", "example": "Monday"},
                "start_time": {"type": "string", "example": "10:00"},
                "end_time": {"type": "string", "example": "10:45"}
            }
        },
        "EntryPatch": {
            "type": "object",
            "required": ["id"],
            "properties": {
                "id": {"type": "string"},
                "teacher": {"type": "string"},
                "subject": {"type": "string"},
                "classroom": {"type": "string"},
                "semester": {"type": "string"},
                "day_of_week": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "is_active": {"type": "boolean"}
            }
        },
        "BatchUpdateRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/EntryPatch"}}
            }
        },
        "CreateSemesterRequest": {
            "type": "object",
            "required": ["name", "start_date", "end_date"],
            "properties": {
                "name": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
