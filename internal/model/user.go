// Package model defines the data structures used throughout the application.
//
// Every persisted type carries two sets of struct tags:
//   - `bson:"..."` is the document shape in the store. All docstore backends
//     encode and decode through BSON, so these names are what filters match on.
//   - `json:"..."` is the HTTP shape. It can differ from the stored shape
//     (the identity is "id" on the wire and "_id" in the store).
package model

// User is a registered account.
//
// Password holds the ENCODED password (see auth.PasswordEncoder), never the
// plaintext. It is persisted but never serialised to JSON.
type User struct {
	ID       string `json:"id"       bson:"_id,omitempty"`
	Email    string `json:"email"    bson:"email"`
	Password string `json:"-"        bson:"password"`
	UserName string `json:"userName" bson:"userName"`
}

// NewUser is the payload for registration and for POST /user.
type NewUser struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=20"`
	UserName string `json:"userName" validate:"required"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=20"`
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	Email    *string `json:"email,omitempty"    validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6,max=20"`
	UserName *string `json:"userName,omitempty"`
}

// Fields returns the patch as stored field name -> value, skipping nil fields.
// Password is returned as given; the user service encodes it before the merge.
func (p UserPatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Email != nil {
		fields["email"] = *p.Email
	}
	if p.Password != nil {
		fields["password"] = *p.Password
	}
	if p.UserName != nil {
		fields["userName"] = *p.UserName
	}
	return fields
}
