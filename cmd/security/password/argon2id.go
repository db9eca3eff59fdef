package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Version = 19 // argon2.Version is 0x13 (19)
)

// hashArgon2id encodes as:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func (c Config) hashArgon2id(plain string) (Encoded, error) {
	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: salt: %w", ErrHashing, err)
	}

	key := argon2.IDKey(
		[]byte(plain),
		salt,
		c.Params.Iterations,
		c.Params.MemoryKiB,
		c.Params.Parallelism,
		c.Params.KeyLength,
	)

	b64 := base64.RawStdEncoding
	enc := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		c.Params.MemoryKiB,
		c.Params.Iterations,
		c.Params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	)
	return Encoded(enc), nil
}

func (c Config) verifyArgon2id(encoded Encoded, plain string) (bool, error) {
	params, salt, expected, err := decodeArgon2id(string(encoded))
	if err != nil {
		return false, err
	}

	if !withinLimits(params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(plain),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- bounded by withinLimits.
	)

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// withinLimits bounds a stored hash by the package limits, not by the
// current settings, so lowering the configured cost never locks anyone out.
func withinLimits(p Argon2idParams) bool {
	return p.MemoryKiB <= maxArgon2MemoryKiB &&
		p.Iterations <= maxArgon2Iterations &&
		int(p.Parallelism) <= maxArgon2Parallelism &&
		p.SaltLength >= minArgon2SaltLength && p.SaltLength <= maxArgon2SaltLength &&
		p.KeyLength >= minArgon2KeyLength && p.KeyLength <= maxArgon2KeyLength
}

func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v=19" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if !strings.HasPrefix(parts[3], "m=") {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding.Strict()
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	hash, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	params := Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by base64 input length.
		KeyLength:   uint32(len(hash)), // #nosec G115 -- bounded by base64 input length.
	}
	return params, salt, hash, nil
}
