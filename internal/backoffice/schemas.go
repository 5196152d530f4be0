package backoffice

// JSON schemas for the back-office payloads. Every field of the settings
// document is optional; defaults are applied by the client.

const settingsSchema = `{
	"type": "object",
	"properties": {
		"firstDelayMs":       {"type": "integer", "minimum": 0},
		"intervalMs":         {"type": "integer", "minimum": 0},
		"order":              {"type": "string", "enum": ["sequential", "random"]},
		"maxPerSession":      {"type": "integer", "minimum": 0},
		"citySearchRadiusKm": {"type": "integer", "minimum": 0}
	}
}`

const typesSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"code":      {"type": "string", "minLength": 1},
			"template":  {"type": "string"},
			"enabled":   {"type": "boolean"},
			"sortOrder": {"type": "integer"}
		},
		"required": ["code", "template", "enabled"]
	}
}`

const namesSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1}
		},
		"required": ["name"]
	}
}`
