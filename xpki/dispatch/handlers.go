package dispatch

import (
	"hash"
	"io"

	"github.com/go-phorce/pgparmor/xpki/packet"
)

// Handlers stands in for the external collaborators this package treats as
// opaque: cryptographic primitives, the key database, and the literal-data
// sink. Context never touches key material or cipher/hash implementations
// directly; it only calls these narrow methods, the same way this
// codebase's crypto-provider abstractions keep their own external
// collaborators behind small, single-purpose interfaces.
type Handlers interface {
	// NewHash returns a hash.Hash for the given RFC 4880 hash algorithm ID
	// (SignatureInfo.HashAlgo), wrapped for canonical-text normalization
	// when textMode is true (signature class 0x01). Used to build the
	// per-algorithm hash set a ONEPASS-SIG chain declares before the
	// PLAINTEXT packet streams through it.
	NewHash(algoID byte, textMode bool) (hash.Hash, error)

	// SessionKey derives a DEK from a PUBKEY-ENC or SYMKEY-ENC packet. The
	// returned bytes are the decrypted data-encryption key to be used for
	// the ENCRYPTED packet that follows.
	SessionKey(pkt *packet.Packet) ([]byte, error)

	// Decrypt returns a reader over the plaintext packet stream nested
	// inside an ENCRYPTED packet's body, given the DEK produced by
	// SessionKey (or derived from a passphrase, when dek is nil).
	Decrypt(dek []byte, body io.Reader) (io.Reader, error)

	// Inflate returns a reader over the packet stream nested inside a
	// COMPRESSED packet's body.
	Inflate(body io.Reader) (io.Reader, error)

	// Literal receives one fully assembled PLAINTEXT packet's body bytes
	// (the literal-data sink), in addition to whatever hashing Context has
	// already fed them to.
	Literal(data []byte) error

	// VerifySignature checks a SIGNATURE packet against a hash-context
	// built from the preceding ONEPASS-SIG/plaintext (hashed may be nil
	// for key/subkey certification classes, where the backend hashes the
	// key material itself). selfSig reports whether the signature is by
	// the key it signs, distinguishing self-certifications from
	// third-party certifications.
	VerifySignature(sig *packet.Packet, info packet.SignatureInfo, hashed hash.Hash) (selfSig bool, err error)

	// NextPacket reads the next OpenPGP packet from r, returning io.EOF at
	// the stream's end. Context calls this only to walk the packet stream
	// nested inside a COMPRESSED packet's inflated body or an ENCRYPTED
	// packet's decrypted body; the top-level
	// packet stream is handed to Context.Process one packet at a time by
	// the caller. Binary packet parsing is the external collaborator's
	// job, so Context never decodes packet headers itself.
	NextPacket(r io.Reader) (*packet.Packet, error)
}
