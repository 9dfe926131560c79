// Package password hashes server-side account passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// [Hasher.NeedsRehash] reports hashes made with weaker parameters so the
// caller can re-hash after the next successful login.
package password
