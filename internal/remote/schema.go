package remote

// recordListSchema describes the GET response body.
const recordListSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "company", "role", "status"],
    "properties": {
      "id":             {"type": "string", "minLength": 1},
      "company":        {"type": "string"},
      "role":           {"type": "string"},
      "status":         {"enum": ["Applied", "Interview", "Offer", "Rejected", "Archived"]},
      "dateApplied":    {"type": "string"},
      "lastUpdated":    {"type": "string"},
      "link":           {"type": "string"},
      "notes":          {"type": "string"},
      "nextAction":     {"type": "string"},
      "nextActionDate": {"type": "string"},
      "salary":         {"type": "string"},
      "location":       {"type": "string"},
      "contacts":       {"type": "string"},
      "customFields": {
        "type": "object",
        "additionalProperties": {"type": "string"}
      }
    }
  }
}`
