// Package keystore manages the local SSH identity used for commit signing.
//
// # Key Resolution
//
// Resolve() picks the identity path, in order:
//
//	keys.path from config, if set
//	IdentityFile for the identity host (github.com) in ~/.ssh/config, if the file exists
//	the first existing default key: ~/.ssh/id_ed25519, ~/.ssh/id_ecdsa, ~/.ssh/id_rsa
//	~/.ssh/id_<algorithm> for a new key
//
// # Key Generation
//
// Generate() creates a new key pair through a Generator backend:
//
//	native     - golang.org/x/crypto/ssh, no external tools (default)
//	ssh-keygen - the OpenSSH utility, run into a private temp directory
//
// Supported algorithms:
//
//	ed25519 - Recommended. Fast, secure, small keys.
//	ecdsa   - NIST P-256.
//	rsa     - Legacy compatibility. Uses 4096-bit keys.
//
// Generation refuses to replace an existing pair unless overwrite is
// requested, in which case the existing files are left untouched on
// failure.
//
// # Security Notes
//
// Both files are staged as temp files in the key directory, synced, and
// renamed into place, so a failed generation never leaves a partially
// written private key. The key directory is created 0700, the private key
// is 0600 and the public key 0644. The package never logs private key
// material or passphrases.
package keystore
