package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/postboard/internal/apperror"
)

func strPtr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		payload   any
		wantField string // empty = valid
	}{
		{"valid new user", NewUser{Email: "a@x.com", Password: "secret1", UserName: "a"}, ""},
		{"new user bad email", NewUser{Email: "nope", Password: "secret1", UserName: "a"}, "email"},
		{"new user short password", NewUser{Email: "a@x.com", Password: "123", UserName: "a"}, "password"},
		{"new user long password", NewUser{Email: "a@x.com", Password: strings.Repeat("x", 21), UserName: "a"}, "password"},
		{"new user missing name", NewUser{Email: "a@x.com", Password: "secret1"}, "userName"},
		{"credentials valid", Credentials{Email: "a@x.com", Password: "secret1"}, ""},
		{"credentials missing password", Credentials{Email: "a@x.com"}, "password"},
		{"empty user patch", UserPatch{}, ""},
		{"user patch bad email", UserPatch{Email: strPtr("bad")}, "email"},
		{"user patch short password", UserPatch{Password: strPtr("abc")}, "password"},
		{"valid post", NewPost{Title: "Hello", Content: "C"}, ""},
		{"post title too short", NewPost{Title: "T", Content: "C"}, "title"},
		{"post patch short title", PostPatch{Title: strPtr("ab")}, "title"},
		{"valid comment", NewComment{PostID: "p1", Comment: "hi"}, ""},
		{"comment missing post", NewComment{Comment: "hi"}, "postId"},
		{"comment too long", NewComment{PostID: "p1", Comment: strings.Repeat("c", MaxCommentLength+1)}, "comment"},
		{"comment at limit", NewComment{PostID: "p1", Comment: strings.Repeat("c", MaxCommentLength)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.payload)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestUserPatchFields(t *testing.T) {
	p := UserPatch{Password: strPtr("newpass1")}
	assert.Equal(t, map[string]any{"password": "newpass1"}, p.Fields())

	assert.Empty(t, UserPatch{}.Fields())
}

func TestPostPatchFields(t *testing.T) {
	p := PostPatch{Title: strPtr("New title"), Content: strPtr("")}
	assert.Equal(t, map[string]any{"title": "New title", "content": ""}, p.Fields())
}
