package auth

import (
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password schemes accepted by NewPasswordEncoder.
const (
	SchemeBase64 = "base64"
	SchemeBcrypt = "bcrypt"
)

// PasswordEncoder turns a raw password into its stored form and checks a raw
// password against a stored one.
type PasswordEncoder interface {
	Encode(raw string) (string, error)
	Matches(encoded, raw string) bool
}

var (
	_ PasswordEncoder = Base64Encoder{}
	_ PasswordEncoder = (*BcryptEncoder)(nil)
)

// NewPasswordEncoder returns the encoder for scheme. An empty scheme means
// base64, which is what existing user records are stored with.
func NewPasswordEncoder(scheme string) (PasswordEncoder, error) {
	switch scheme {
	case "", SchemeBase64:
		return Base64Encoder{}, nil
	case SchemeBcrypt:
		return NewBcryptEncoder(), nil
	default:
		return nil, fmt.Errorf("auth: unknown password scheme %q", scheme)
	}
}

// Base64Encoder stores passwords as standard base64 of their UTF-8 bytes.
//
// SECURITY: this is obfuscation, not hashing. Anyone who can read the users
// collection can recover every password with Decode. It is the default only
// because existing records were written this way; set password_scheme to
// bcrypt for new deployments. Records written under one scheme cannot be
// authenticated under the other.
type Base64Encoder struct{}

func (Base64Encoder) Encode(raw string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(raw)), nil
}

func (e Base64Encoder) Matches(encoded, raw string) bool {
	want, _ := e.Encode(raw)
	return encoded == want
}

// Decode reverses Encode.
func (Base64Encoder) Decode(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("auth: decoding password: %w", err)
	}
	return string(b), nil
}

// defaultCost is the bcrypt work factor.
//
// Cost 12 takes roughly 250ms on a modern server.
// Set cost so that hashing takes ~200–300ms on your production hardware.
// Too low → easy to crack. Too high → login is sluggish during traffic spikes.
const defaultCost = 12

// BcryptEncoder stores passwords as salted bcrypt hashes.
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version
//
// It's a struct (not free functions) so that the cost can be injected in
// tests: cost 4 makes tests run in milliseconds.
type BcryptEncoder struct {
	cost int
}

// NewBcryptEncoder creates a BcryptEncoder with the default cost (12).
func NewBcryptEncoder() *BcryptEncoder {
	return &BcryptEncoder{cost: defaultCost}
}

// NewBcryptEncoderWithCost creates a BcryptEncoder with a custom cost.
// Other packages' tests use bcrypt.MinCost. Do NOT use low costs in production.
func NewBcryptEncoderWithCost(cost int) *BcryptEncoder {
	return &BcryptEncoder{cost: cost}
}

// Encode hashes raw with bcrypt.
//
// Returns an error if raw is longer than 72 bytes: bcrypt silently
// truncates, and callers should not be surprised by that.
func (e *BcryptEncoder) Encode(raw string) (string, error) {
	if len(raw) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), e.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Matches reports whether raw hashes to encoded. bcrypt compares in
// constant time.
func (e *BcryptEncoder) Matches(encoded, raw string) bool {
	return e.Verify(encoded, raw) == nil
}

// Verify is Matches with the reason for a mismatch.
func (e *BcryptEncoder) Verify(encoded, raw string) error {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(raw))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
