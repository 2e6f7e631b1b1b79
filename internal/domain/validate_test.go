package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_NormalizeAndValidate(t *testing.T) {
	u := &User{Name: "  Ann ", Email: "  Ann@X.com "}
	u.Normalize()
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "ann@x.com", u.Email)
	assert.NoError(t, u.Validate())
}

func TestUser_ValidateFieldErrors(t *testing.T) {
	cases := []struct {
		name  string
		user  User
		field string
	}{
		{"missing name", User{Email: "a@b.com"}, "name"},
		{"bad email", User{Name: "a", Email: "not-an-email"}, "email"},
		{"missing email", User{Name: "a"}, "email"},
		{"negative age", User{Name: "a", Email: "a@b.com", Age: -1}, "age"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.user.Validate()
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("longpass1"))
	assert.NoError(t, ValidatePassword("  seven77  "))

	for _, pw := range []string{"", "short", "  six6  ", "myPassword123", "PASSWORDxyz"} {
		err := ValidatePassword(pw)
		assert.Error(t, err, pw)
		assert.True(t, IsValidation(err), pw)
	}
}

func TestUser_JSONHidesSecrets(t *testing.T) {
	u := User{ID: "u1", Name: "Ann", Email: "ann@x.com", PasswordHash: "$2a$hash", AvatarKey: "avatars/u1.png"}
	b, err := json.Marshal(u)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "Ann", m["name"])
	assert.NotContains(t, string(b), "$2a$hash")
	assert.NotContains(t, string(b), "avatars/u1.png")
	for _, k := range []string{"passwordHash", "PasswordHash", "tokens", "avatar", "AvatarKey"} {
		assert.NotContains(t, m, k)
	}
}

func TestDuplicateKeyError_Is(t *testing.T) {
	err := error(&DuplicateKeyError{Field: "email"})
	assert.True(t, errors.Is(err, ErrDuplicateKey))
	assert.False(t, errors.Is(err, ErrAuthentication))
	assert.Equal(t, "email is already registered", err.Error())
}

func TestTask_Validate(t *testing.T) {
	tk := &Task{OwnerID: "u1", Description: "   "}
	tk.Normalize()
	assert.True(t, IsValidation(tk.Validate()))

	tk.Description = "  buy milk "
	tk.Normalize()
	assert.NoError(t, tk.Validate())
	assert.Equal(t, "buy milk", tk.Description)
}
