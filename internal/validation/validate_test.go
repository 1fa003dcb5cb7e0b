package validation

import (
	"testing"

	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Email *string `json:"email" validate:"omitempty,email"`
	Name  string  `json:"first_name" validate:"required,max=5"`
	Age   *int    `json:"age" validate:"omitempty,min=0,max=150"`
}

func ptr[T any](v T) *T { return &v }

func TestStruct(t *testing.T) {
	tests := []struct {
		name string
		in   sample
		want []string
	}{
		{"valid", sample{Email: ptr("a@x.io"), Name: "Asha", Age: ptr(30)}, nil},
		{"nil optionals", sample{Name: "Asha"}, nil},
		{"bad email", sample{Email: ptr("nope"), Name: "Asha"}, []string{"email must be a valid email address"}},
		{"missing name", sample{}, []string{"first_name is required"}},
		{"long name", sample{Name: "Abcdefg"}, []string{"first_name must be at most 5 characters"}},
		{"negative age", sample{Name: "A", Age: ptr(-1)}, []string{"age must be at least 0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, common.ErrorValidation)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}
