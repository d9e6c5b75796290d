package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactMessage struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	Message string `json:"message" validate:"required,max=20"`
	Field   string `json:"field,omitempty" validate:"omitempty,oneof=name email"`
}

func valid() contactMessage {
	return contactMessage{Name: "Asha", Email: "asha@example.com", Message: "XL restock?"}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*contactMessage)
		want   map[string]string
	}{
		{"valid", func(*contactMessage) {}, nil},
		{"phone is optional", func(m *contactMessage) { m.Phone = "" }, nil},
		{"missing name", func(m *contactMessage) { m.Name = "" }, map[string]string{"name": "is required"}},
		{"bad email", func(m *contactMessage) { m.Email = "asha" }, map[string]string{"email": "must be a valid email address"}},
		{"long message", func(m *contactMessage) { m.Message = strings.Repeat("x", 21) }, map[string]string{"message": "must be at most 20 characters"}},
		{"unknown field", func(m *contactMessage) { m.Field = "hoodie" }, map[string]string{"field": "must be one of: name email"}},
		{
			"everything empty",
			func(m *contactMessage) { *m = contactMessage{} },
			map[string]string{"name": "is required", "email": "is required", "message": "is required"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := valid()
			tc.mutate(&m)
			err := Validate(m)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.want, fieldsOf(t, err))
		})
	}
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("not a struct")
	require.Error(t, err)
	var valErr *ValidationError
	assert.NotErrorAs(t, err, &valErr)
}

func TestValidationError_ErrorIsSorted(t *testing.T) {
	err := Validate(contactMessage{Email: "asha", Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, "field 'email' must be a valid email address; field 'name' is required", err.Error())
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"ok", `{"name":"Asha","email":"asha@example.com","phone":"","message":"hi"}`, ""},
		{"malformed", `{bad`, "decode request body"},
		{"unknown field", `{"name":"Asha","size":"XL"}`, `unknown field "size"`},
		{"invalid", `{"name":"Asha","email":"x","message":"hi"}`, "field 'email'"},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "request body too large"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/x/contact/submit", strings.NewReader(tc.body))
			var m contactMessage
			err := DecodeAndValidate(req, &m)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Asha", m.Name)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
