// Package auth holds the credentials meshgate trusts.
//
// Two kinds of principal exist:
//   - Gateways present a long-lived bearer secret. IssueSecret mints one and
//     returns it in plaintext exactly once; only its SHA-256 hash and a short
//     display prefix are stored. VerifySecret compares in constant time.
//   - The single administrator logs in with a username and password checked
//     against an argon2id PHC hash from configuration, and receives a short
//     HS256 access token.
//
// Neither path returns an error for a wrong credential: verification
// results are booleans, and callers decide how to reject.
package auth
