package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Academia API",
        "description": "Academic performance and gamification engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Enrollments", "description": "Enrollment lifecycle and attendance counters"},
        {"name": "Grades", "description": "Grade capture, regrades and period locks"},
        {"name": "Gamification", "description": "Points, streaks and badges"},
        {"name": "Rankings", "description": "Leaderboards per group, grade and school"},
        {"name": "Recalculation", "description": "Aggregate recomputation"}
    ],
    "paths": {
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "groupId", "in": "query", "type": "string"},
                    {"name": "cycleId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate enrollment or full group", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get enrollment detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/enrollments/{id}/withdraw": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Withdraw an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WithdrawRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid state transition", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/enrollments/{id}/reactivate": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Reactivate a temporary withdrawal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid state transition", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/enrollments/{id}/transfer": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Transfer an enrollment to another group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransferRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Target group full", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/enrollments/{id}/finalize": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Finalize an enrollment's cycle",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No grades to finalize from", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/enrollments/{id}/attendance": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Store folded attendance counters",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttendanceStatsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Inconsistent counters", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/enrollments/{id}/attendance/sync": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Recompute attendance counters from daily records",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "List grades of an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/recalculate": {
            "post": {
                "tags": ["Recalculation"],
                "summary": "Recalculate one enrollment's aggregates",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades": {
            "post": {
                "tags": ["Grades"],
                "summary": "Capture a new grade",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CaptureGradeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Grade already captured", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/grades/{id}": {
            "get": {
                "tags": ["Grades"],
                "summary": "Get grade detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/{id}/regrade": {
            "post": {
                "tags": ["Grades"],
                "summary": "Correct an existing grade",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Grade locked", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/grades/{id}/history": {
            "get": {
                "tags": ["Grades"],
                "summary": "List the audit trail of a grade",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/{id}/lock": {
            "post": {
                "tags": ["Grades"],
                "summary": "Lock a single grade",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/groups/{groupId}/periods/{period}/lock": {
            "post": {
                "tags": ["Grades"],
                "summary": "Lock every grade of a group for a period",
                "parameters": [
                    {"name": "groupId", "in": "path", "required": true, "type": "string"},
                    {"name": "period", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/points": {
            "get": {
                "tags": ["Gamification"],
                "summary": "Get a student's points profile for a cycle",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "cycleId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/points/history": {
            "get": {
                "tags": ["Gamification"],
                "summary": "List a student's points ledger",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "cycleId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/badges": {
            "get": {
                "tags": ["Gamification"],
                "summary": "List a student's badge awards",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "cycleId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/awards": {
            "post": {
                "tags": ["Gamification"],
                "summary": "Award or deduct points",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AwardPointsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/streaks": {
            "put": {
                "tags": ["Gamification"],
                "summary": "Update a streak counter",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStreakRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/badges/awards": {
            "post": {
                "tags": ["Gamification"],
                "summary": "Grant a badge",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AwardBadgeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Badge already earned", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/rankings/{scope}/{scopeId}": {
            "get": {
                "tags": ["Rankings"],
                "summary": "Get the leaderboard for a scope",
                "parameters": [
                    {"name": "scope", "in": "path", "required": true, "type": "string", "enum": ["GROUP", "GRADE", "SCHOOL"]},
                    {"name": "scopeId", "in": "path", "required": true, "type": "string"},
                    {"name": "cycleId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rankings/{scope}/{scopeId}/recompute": {
            "post": {
                "tags": ["Rankings"],
                "summary": "Recompute a ranking scope",
                "parameters": [
                    {"name": "scope", "in": "path", "required": true, "type": "string", "enum": ["GROUP", "GRADE", "SCHOOL"]},
                    {"name": "scopeId", "in": "path", "required": true, "type": "string"},
                    {"name": "cycleId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Recompute already running", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/cycles/{cycleId}/recalculate": {
            "post": {
                "tags": ["Recalculation"],
                "summary": "Recalculate every active enrollment of a cycle",
                "parameters": [
                    {"name": "cycleId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "EnrollRequest": {
            "type": "object",
            "required": ["student_id", "group_id", "cycle_id"],
            "properties": {
                "student_id": {"type": "string"},
                "group_id": {"type": "string"},
                "cycle_id": {"type": "string"},
                "has_scholarship": {"type": "boolean"},
                "scholarship_percent": {"type": "number"}
            }
        },
        "WithdrawRequest": {
            "type": "object",
            "required": ["kind", "reason"],
            "properties": {
                "kind": {"type": "string", "enum": ["TEMPORARY", "PERMANENT"]},
                "reason": {"type": "string"}
            }
        },
        "TransferRequest": {
            "type": "object",
            "required": ["new_group_id", "reason"],
            "properties": {
                "new_group_id": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "AttendanceStatsRequest": {
            "type": "object",
            "properties": {
                "total_days": {"type": "integer"},
                "attended_days": {"type": "integer"},
                "absent_days": {"type": "integer"},
                "late_days": {"type": "integer"}
            }
        },
        "CaptureGradeRequest": {
            "type": "object",
            "required": ["enrollment_id", "student_id", "subject_id", "group_id", "period", "eval_type", "weight"],
            "properties": {
                "enrollment_id": {"type": "string"},
                "student_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "group_id": {"type": "string"},
                "period": {"type": "integer"},
                "score": {"type": "number"},
                "eval_type": {"type": "string", "enum": ["PARTIAL", "FINAL", "CONTINUOUS", "EXTRAORDINARY"]},
                "weight": {"type": "number"},
                "parent_visible": {"type": "boolean"},
                "observations": {"type": "string"}
            }
        },
        "RegradeRequest": {
            "type": "object",
            "required": ["new_score", "reason"],
            "properties": {
                "new_score": {"type": "number"},
                "reason": {"type": "string"},
                "observations": {"type": "string"}
            }
        },
        "AwardPointsRequest": {
            "type": "object",
            "required": ["student_id", "cycle_id", "category", "source_type", "source_id"],
            "properties": {
                "student_id": {"type": "string"},
                "cycle_id": {"type": "string"},
                "category": {"type": "string"},
                "amount": {"type": "integer"},
                "source_type": {"type": "string"},
                "source_id": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "UpdateStreakRequest": {
            "type": "object",
            "required": ["student_id", "cycle_id", "kind"],
            "properties": {
                "student_id": {"type": "string"},
                "cycle_id": {"type": "string"},
                "kind": {"type": "string", "enum": ["ATTENDANCE", "CONDUCT", "HOMEWORK"]},
                "continued": {"type": "boolean"}
            }
        },
        "AwardBadgeRequest": {
            "type": "object",
            "required": ["student_id", "cycle_id", "badge_id", "reason"],
            "properties": {
                "student_id": {"type": "string"},
                "cycle_id": {"type": "string"},
                "badge_id": {"type": "string"},
                "reason": {"type": "string"}
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
