package types

import "fmt"

// FieldType is the presentation type of a custom field. Values are always
// stored as strings regardless of type.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldDate   FieldType = "date"
	FieldURL    FieldType = "url"
	FieldNumber FieldType = "number"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldDate, FieldURL, FieldNumber:
		return true
	}
	return false
}

// CustomFieldDefinition describes one user-defined column. Definitions are
// stored apart from the records that carry values for them.
type CustomFieldDefinition struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
}

// Validate checks the definition is usable.
func (d *CustomFieldDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Label == "" {
		return fmt.Errorf("%w: label", ErrMissingField)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFieldType, d.Type)
	}
	return nil
}

// ChatRole tags who authored a chat message.
type ChatRole string

const (
	RoleUser   ChatRole = "user"
	RoleModel  ChatRole = "model"
	RoleSystem ChatRole = "system"
)

// ChatMessage is one entry of the assistant conversation history.
type ChatMessage struct {
	ID        string   `json:"id"`
	Role      ChatRole `json:"role"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds
}
