package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownField is returned when a contact form field name is not recognised.
var ErrUnknownField = errors.New("unknown contact field")

// Field names a single editable field of a ContactMessage.
type Field string

// Contact form fields.
const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldMessage Field = "message"
)

// Fields lists every editable field in form order.
func Fields() []Field {
	return []Field{FieldName, FieldEmail, FieldPhone, FieldMessage}
}

// ParseField converts a form or JSON field name to a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FieldName, FieldEmail, FieldPhone, FieldMessage:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// ContactMessage is the inquiry a visitor sends through the contact form.
// It is treated as a value: every edit produces a new record.
type ContactMessage struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	Message string `json:"message" validate:"required"`
}

// EmptyContactMessage returns the blank form record.
func EmptyContactMessage() ContactMessage {
	return ContactMessage{}
}

// With returns a copy of m with field set to value.
func (m ContactMessage) With(field Field, value string) (ContactMessage, error) {
	switch field {
	case FieldName:
		m.Name = value
	case FieldEmail:
		m.Email = value
	case FieldPhone:
		m.Phone = value
	case FieldMessage:
		m.Message = value
	default:
		return m, fmt.Errorf("%w: %q", ErrUnknownField, string(field))
	}
	return m, nil
}

// Get returns the current value of field.
func (m ContactMessage) Get(field Field) string {
	switch field {
	case FieldName:
		return m.Name
	case FieldEmail:
		return m.Email
	case FieldPhone:
		return m.Phone
	case FieldMessage:
		return m.Message
	}
	return ""
}

// IsEmpty reports whether every field is blank.
func (m ContactMessage) IsEmpty() bool {
	return m == ContactMessage{}
}

// EmailDomain returns the part of the address after '@', or "" when absent.
func (m ContactMessage) EmailDomain() string {
	i := strings.LastIndexByte(m.Email, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(m.Email[i+1:])
}
