package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"yaca/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

// SpecialCharacters is the only punctuation a password may contain.
const SpecialCharacters = "$%#@!*&~^-+"

// HashPassword accepts passwords of any length. bcrypt only reads 72 bytes,
// so it is fed a fixed-size digest of the whole password instead.
func HashPassword(pw string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword(prehash(pw), cost)
	return string(b), err
}

// VerifyPassword compares in constant time; a malformed hash never matches.
func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(pw)) == nil
}

// prehash yields 44 base64 bytes: under bcrypt's limit and free of NULs.
func prehash(pw string) []byte {
	sum := sha256.Sum256([]byte(pw))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// ValidatePassword applies the password policy. Clauses are checked in order
// and the first one that fails is reported.
func ValidatePassword(pw string) error {
	switch {
	case utf8.RuneCountInString(pw) < 4:
		return weak("Password must be at least 4 characters long.")
	case !strings.ContainsFunc(pw, isASCIILetter):
		return weak("Password must contain at least one letter character.")
	case !strings.ContainsFunc(pw, isASCIIDigit):
		return weak("Password must contain at least one number character.")
	case !strings.ContainsAny(pw, SpecialCharacters):
		return weak("Password must contain at least one special character from the set: { $ % # @ ! * & ~ ^ - + }")
	case strings.ContainsFunc(pw, func(r rune) bool {
		return !isASCIILetter(r) && !isASCIIDigit(r) && !strings.ContainsRune(SpecialCharacters, r)
	}):
		return weak("Password can only contain letters, numbers, and special characters { $ % # @ ! * & ~ ^ - + }")
	}
	return nil
}

func weak(msg string) error { return apperr.New(apperr.WeakPassword, msg) }

func isASCIILetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
