package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "University Department API",
        "description": "Department, staff, and course management with arbitrated course assignments",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Departments", "description": "Academic department management"},
        {"name": "Staff", "description": "Teaching staff roster"},
        {"name": "Courses", "description": "Course catalog and staff bindings"},
        {"name": "Requests", "description": "Course assignment request workflow"}
    ],
    "paths": {
        "/departments": {
            "get": {
                "tags": ["Departments"],
                "summary": "List departments",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Departments"],
                "summary": "Create department",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDepartmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/departments/{id}": {
            "get": {
                "tags": ["Departments"],
                "summary": "Get department",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Departments"],
                "summary": "Update department",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateDepartmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Departments"],
                "summary": "Delete department",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"},
                    "409": {"description": "Dependent records exist"}
                }
            }
        },
        "/departments/{id}/unassigned-courses": {
            "get": {
                "tags": ["Departments"],
                "summary": "List unassigned courses of a department",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/departments/{id}/roster/export": {
            "get": {
                "tags": ["Departments"],
                "summary": "Export the department course roster",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Roster file"}
                }
            }
        },
        "/staff": {
            "get": {
                "tags": ["Staff"],
                "summary": "List teaching staff",
                "parameters": [
                    {"name": "department_id", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Staff"],
                "summary": "Create staff member",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStaffRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/staff/{id}": {
            "get": {
                "tags": ["Staff"],
                "summary": "Get staff member",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Staff"],
                "summary": "Update staff member",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStaffRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Assigned courses block the change"}
                }
            },
            "delete": {
                "tags": ["Staff"],
                "summary": "Delete staff member",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"},
                    "409": {"description": "Assigned courses exist"}
                }
            }
        },
        "/staff/{id}/courses": {
            "get": {
                "tags": ["Staff"],
                "summary": "List courses assigned to a staff member",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "parameters": [
                    {"name": "department_id", "in": "query", "type": "string"},
                    {"name": "teaching_staff_id", "in": "query", "type": "string"},
                    {"name": "unassigned", "in": "query", "type": "boolean"},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict"}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Courses"],
                "summary": "Update course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateCourseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict"}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"},
                    "409": {"description": "Pending requests exist"}
                }
            }
        },
        "/courses/{id}/assign": {
            "post": {
                "tags": ["Courses"],
                "summary": "Assign a staff member to a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignStaffRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict"},
                    "422": {"description": "Department mismatch"},
                    "503": {"description": "Write contention"}
                }
            }
        },
        "/courses/{id}/unassign": {
            "post": {
                "tags": ["Courses"],
                "summary": "Clear the staff binding of a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/course-requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List course requests",
                "parameters": [
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "teaching_staff_id", "in": "query", "type": "string"},
                    {"name": "department_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a course request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitRequestPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate request or course already assigned"}
                }
            }
        },
        "/course-requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get course request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Requests"],
                "summary": "Approve or reject a course request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideRequestPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided or schedule conflict"},
                    "503": {"description": "Write contention"}
                }
            }
        }
    },
    "definitions": {
        "CreateDepartmentRequest": {
            "type": "object",
            "required": ["name", "chair"],
            "properties": {
                "name": {"type": "string"},
                "chair": {"type": "string"}
            }
        },
        "UpdateDepartmentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "chair": {"type": "string"}
            }
        },
        "CreateStaffRequest": {
            "type": "object",
            "required": ["name", "email", "department_id", "specialization"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "department_id": {"type": "string"},
                "specialization": {"type": "string"}
            }
        },
        "UpdateStaffRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "department_id": {"type": "string"},
                "specialization": {"type": "string"}
            }
        },
        "CreateCourseRequest": {
            "type": "object",
            "required": ["code", "name", "credits", "department_id"],
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "credits": {"type": "integer"},
                "department_id": {"type": "string"},
                "teaching_staff_id": {"type": "string"},
                "schedule_day": {"type": "string"},
                "schedule_time": {"type": "string"},
                "room": {"type": "string"},
                "capacity": {"type": "integer"},
                "semester": {"type": "string"}
            }
        },
        "UpdateCourseRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "credits": {"type": "integer"},
                "department_id": {"type": "string"},
                "teaching_staff_id": {"type": "string"},
                "schedule_day": {"type": "string"},
                "schedule_time": {"type": "string"},
                "room": {"type": "string"},
                "capacity": {"type": "integer"},
                "semester": {"type": "string"}
            }
        },
        "AssignStaffRequest": {
            "type": "object",
            "required": ["teaching_staff_id"],
            "properties": {
                "teaching_staff_id": {"type": "string"}
            }
        },
        "SubmitRequestPayload": {
            "type": "object",
            "required": ["course_id", "teaching_staff_id"],
            "properties": {
                "course_id": {"type": "string"},
                "teaching_staff_id": {"type": "string"},
                "note": {"type": "string"}
            }
        },
        "DecideRequestPayload": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "note": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
