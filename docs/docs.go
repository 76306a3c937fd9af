// Package docs registers the swagger document served at /swagger.
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
    "paths": {
        "/match": {
            "get": {
                "produces": ["application/json"],
                "summary": "Match an address triple against the reference set",
                "parameters": [
                    {"type": "string", "description": "Province name", "name": "province", "in": "query", "required": true},
                    {"type": "string", "description": "City name", "name": "city", "in": "query"},
                    {"type": "string", "description": "District name", "name": "district", "in": "query"},
                    {"type": "number", "description": "Minimum similarity per level", "name": "threshold", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Outcome"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/service.Outcome"}}
                }
            }
        },
        "/random-point": {
            "get": {
                "produces": ["application/json"],
                "summary": "Scatter a point within a radius of a center",
                "parameters": [
                    {"type": "number", "description": "Center latitude", "name": "lat", "in": "query", "required": true},
                    {"type": "number", "description": "Center longitude", "name": "lon", "in": "query", "required": true},
                    {"type": "number", "description": "Radius in kilometers", "name": "radius_km", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.RandomPointResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "geo.Failure": {
            "type": "object",
            "properties": {
                "candidate": {"type": "string"},
                "input": {"type": "string"},
                "score": {"type": "number"},
                "stage": {"type": "integer"}
            }
        },
        "geo.Resolution": {
            "type": "object",
            "properties": {
                "city": {"type": "string"},
                "city_score": {"type": "number"},
                "confidence": {"type": "number"},
                "district": {"type": "string"},
                "district_score": {"type": "number"},
                "failure": {"$ref": "#/definitions/geo.Failure"},
                "level": {"type": "integer"},
                "province": {"type": "string"},
                "province_score": {"type": "number"}
            }
        },
        "handler.RandomPointResponse": {
            "type": "object",
            "properties": {
                "center": {"$ref": "#/definitions/models.Point"},
                "distance_km": {"type": "number"},
                "point": {"$ref": "#/definitions/models.Point"}
            }
        },
        "models.Point": {
            "type": "object",
            "properties": {
                "latitude": {"type": "number"},
                "longitude": {"type": "number"}
            }
        },
        "service.Outcome": {
            "type": "object",
            "properties": {
                "center": {"$ref": "#/definitions/models.Point"},
                "found": {"type": "boolean"},
                "point": {"$ref": "#/definitions/models.Point"},
                "resolution": {"$ref": "#/definitions/geo.Resolution"},
                "source": {"type": "string"}
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
	Title:            "Device Geocoder API",
	Description:      "Fuzzy administrative address matching and coordinate synthesis.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
