// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("malformed password hash")

// Argon2Params are the argon2id cost settings encoded into every hash.
type Argon2Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// PasswordParams is what new hashes are produced with. Hashes carrying
// different settings are upgraded on the next successful login.
var PasswordParams = Argon2Params{
	Memory:  64 * 1024,
	Time:    1,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

var b64 = base64.RawStdEncoding

func HashPassword(password string) (string, error) {
	return hashWith(password, PasswordParams)
}

func hashWith(password string, p Argon2Params) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// parseHash splits a PHC formatted argon2id string.
func parseHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	rest, ok := strings.CutPrefix(encoded, "$argon2id$")
	if !ok {
		return p, nil, nil, fmt.Errorf("%w: not argon2id", ErrMalformedHash)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return p, nil, nil, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedHash, len(fields))
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[0])
	}
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: params %q", ErrMalformedHash, fields[1])
	}

	salt, err := b64.DecodeString(fields[2])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := b64.DecodeString(fields[3])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	p.SaltLen = len(salt)
	//nolint:gosec // G115: argon2 keys are a few dozen bytes
	p.KeyLen = uint32(len(key))

	return p, salt, key, nil
}

func verify(password, encoded string) (bool, Argon2Params, error) {
	p, salt, want, err := parseHash(encoded)
	if err != nil {
		return false, p, err
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(want, got) == 1, p, nil
}

// VerifyPasswordWithRehash checks password against encoded. When it matches
// and encoded was produced with outdated params, a fresh hash is returned as
// the second value; it is empty otherwise.
func VerifyPasswordWithRehash(password, encoded string) (bool, string, error) {
	ok, p, err := verify(password, encoded)
	if err != nil || !ok {
		return false, "", err
	}
	if p == PasswordParams {
		return true, "", nil
	}

	upgraded, err := HashPassword(password)
	if err != nil {
		//nolint:nilerr // the password matched; the upgrade is retried next login
		return true, "", nil
	}
	return true, upgraded, nil
}

var decoy = sync.OnceValue(func() string {
	h, err := HashPassword("supernova-decoy-password")
	if err != nil {
		panic(fmt.Sprintf("security: decoy hash: %v", err))
	}
	return h
})

// VerifyPasswordTimingSafe behaves like VerifyPasswordWithRehash but also
// burns a full argon2 round when encoded is nil or empty, so unknown
// accounts take as long to reject as wrong passwords.
func VerifyPasswordTimingSafe(password string, encoded *string) (bool, string, error) {
	if encoded == nil || *encoded == "" {
		_, _, _ = verify(password, decoy())
		return false, "", nil
	}
	return VerifyPasswordWithRehash(password, *encoded)
}

// GenerateSecureToken returns n random bytes as unpadded URL-safe base64, so
// tokens can be dropped into query strings without escaping.
func GenerateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the at-rest form of refresh and confirmation tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
