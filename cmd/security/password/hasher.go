package password

import "strings"

// Encoded is a stored credential: the self-describing output of Hash.
// Stores accept this type only, never a plaintext string.
type Encoded string

// Algorithm reports which KDF produced e, or "" when unrecognized.
func (e Encoded) Algorithm() Algorithm {
	s := string(e)
	switch {
	case strings.HasPrefix(s, "$argon2id$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(s, "$2a$"), strings.HasPrefix(s, "$2b$"), strings.HasPrefix(s, "$2y$"):
		return AlgorithmBcrypt
	default:
		return ""
	}
}

// IsZero reports whether no credential has been set.
func (e Encoded) IsZero() bool { return e == "" }

// String redacts the value so credentials never end up in logs.
func (e Encoded) String() string {
	if e == "" {
		return ""
	}
	return "[REDACTED]"
}

// Hasher is the capability consumed by the account flows.
type Hasher interface {
	Hash(plain string) (Encoded, error)
	Verify(encoded Encoded, plain string) bool
	NeedsRehash(encoded Encoded) bool
}

var _ Hasher = Config{}

// Hash validates plain against the policy and hashes it with the configured
// algorithm and a fresh random salt.
func (c Config) Hash(plain string) (Encoded, error) {
	if err := c.Validate(plain); err != nil {
		return "", err
	}
	return c.hash(plain)
}

// hash skips policy checks. Used for the login timing decoy.
func (c Config) hash(plain string) (Encoded, error) {
	switch c.Algorithm {
	case AlgorithmArgon2id:
		return c.hashArgon2id(plain)
	default:
		return c.hashBcrypt(plain)
	}
}

// DecoyHash returns a valid credential for an unguessable input. Verifying
// against it costs the same as verifying a real credential.
func (c Config) DecoyHash() (Encoded, error) {
	return c.hash("koach-login-decoy-credential")
}

// Verify reports whether plain matches encoded. Mismatch and malformed input
// both yield false.
func (c Config) Verify(encoded Encoded, plain string) bool {
	ok, err := c.Compare(encoded, plain)
	return err == nil && ok
}

// Compare is Verify with the failure reason kept.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported hashes.
func (c Config) Compare(encoded Encoded, plain string) (bool, error) {
	switch encoded.Algorithm() {
	case AlgorithmBcrypt:
		return c.verifyBcrypt(encoded, plain)
	case AlgorithmArgon2id:
		return c.verifyArgon2id(encoded, plain)
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encoded was produced by a different algorithm
// or different work factors than currently configured. Lowered settings
// count too, so a rollback of the cost converges on the next login.
// Argon2id parallelism is ignored since its default follows the host CPU.
func (c Config) NeedsRehash(encoded Encoded) bool {
	alg := encoded.Algorithm()
	if alg != c.Algorithm {
		return true
	}
	switch alg {
	case AlgorithmBcrypt:
		cost, err := bcryptCost(encoded)
		return err != nil || cost != c.Bcrypt.Cost
	case AlgorithmArgon2id:
		p, _, _, err := decodeArgon2id(string(encoded))
		if err != nil {
			return true
		}
		return p.MemoryKiB != c.Params.MemoryKiB ||
			p.Iterations != c.Params.Iterations ||
			p.KeyLength != c.Params.KeyLength
	}
	return true
}
