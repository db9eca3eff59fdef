// Package token issues and verifies the bearer tokens handed out on signup
// and login.
//
// Tokens are HS256 JWTs carrying the account id in an "id" claim plus the
// issue time. Verification is stateless: there is no registry and no
// revocation list, so a token stays valid until the secret rotates or, when
// a TTL is configured, until it expires.
//
// Environment:
// - KOACH_TOKEN_SECRET: HMAC secret, at least 32 bytes.
// - KOACH_TOKEN_TTL: optional lifetime (e.g. "24h"); 0 disables expiry.
// - KOACH_TOKEN_ISSUER: optional "iss" claim, enforced on verify when set.
package token
