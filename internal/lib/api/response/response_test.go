package response

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestOKAndError(t *testing.T) {
	ok := OK()
	require.Equal(t, StatusOK, ok.Status)
	require.Empty(t, ok.Error)

	e := Error("boom")
	require.Equal(t, StatusError, e.Status)
	require.Equal(t, "boom", e.Error)
}

func TestValidationError(t *testing.T) {
	type req struct {
		Email string `validate:"required,email"`
		Name  string `validate:"required"`
	}

	err := validator.New().Struct(req{Email: "not-an-email"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	require.Equal(t, StatusError, resp.Status)
	require.Contains(t, resp.Error, "field Email is not a valid email")
	require.Contains(t, resp.Error, "field Name is required")
}
