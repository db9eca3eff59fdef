// Package password turns plaintext passwords into stored credentials and
// checks candidates against them.
//
// Two algorithms are supported:
// - bcrypt (default), with a configurable cost
// - Argon2id, encoded in the PHC-like "$argon2id$v=19$m=..,t=..,p=..$salt$hash" form
//
// Every stored credential embeds its own salt and work factor, so hashes
// produced under an older algorithm or cost keep verifying after the
// configuration changes. NeedsRehash reports when such a hash should be
// upgraded.
//
// Security notes:
// - Encoded hashes are treated as untrusted input during Verify.
// - Verify is fail-closed: malformed, unknown or out-of-bounds hashes never match.
package password
