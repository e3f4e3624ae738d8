package dispatch

import (
	"bytes"
	"crypto"
	"hash"
	"io"

	"github.com/go-phorce/pgparmor/xpki/packet"
	"github.com/juju/errors"
	"golang.org/x/crypto/openpgp"
	opgppacket "golang.org/x/crypto/openpgp/packet"
)

// hashAlgoToCrypto maps RFC 4880 section 9.4 hash algorithm IDs to
// crypto.Hash.
var hashAlgoToCrypto = map[byte]crypto.Hash{
	1:  crypto.MD5,
	2:  crypto.SHA1,
	3:  crypto.RIPEMD160,
	8:  crypto.SHA256,
	9:  crypto.SHA384,
	10: crypto.SHA512,
	11: crypto.SHA224,
}

// GPGHandlers implements Handlers on top of golang.org/x/crypto/openpgp,
// the same library xpki/gpg already wraps for entity handling. It supports
// the verify path only: SessionKey, Decrypt and Inflate return errors,
// since decryption and compression need a secret-key store and a
// zlib/bzip2 collaborator this CLI has no use for.
type GPGHandlers struct {
	KeyRing openpgp.EntityList
}

// NewGPGHandlers returns a GPGHandlers that verifies signatures against the
// given keyring, as loaded by xpki/gpg.KeyRingFromFile.
func NewGPGHandlers(keyring openpgp.EntityList) *GPGHandlers {
	return &GPGHandlers{KeyRing: keyring}
}

// NewHash returns a hash.Hash for the RFC 4880 hash algorithm ID, wrapped in
// the canonical-text transform when textMode is set, exactly as
// hashForSignature does for SigTypeText.
func (g *GPGHandlers) NewHash(algoID byte, textMode bool) (hash.Hash, error) {
	ch, ok := hashAlgoToCrypto[algoID]
	if !ok || !ch.Available() {
		return nil, errors.Annotatef(ErrPubkeyAlgo, "hash algo %d unavailable", algoID)
	}
	h := ch.New()
	if textMode {
		return openpgp.NewCanonicalTextHash(h), nil
	}
	return h, nil
}

// SessionKey is not supported: this Handlers only drives ModeSigsOnly
// verification, which never emits PUBKEY-ENC/SYMKEY-ENC packets.
func (g *GPGHandlers) SessionKey(pkt *packet.Packet) ([]byte, error) {
	return nil, errors.Annotate(ErrNoSecKey, "session-key decryption not supported by verify")
}

// Decrypt is not supported, for the same reason as SessionKey.
func (g *GPGHandlers) Decrypt(dek []byte, body io.Reader) (io.Reader, error) {
	return nil, errors.New("dispatch: encrypted packets not supported by verify")
}

// Inflate is not supported: this CLI path verifies signatures only, never
// decompresses.
func (g *GPGHandlers) Inflate(body io.Reader) (io.Reader, error) {
	return nil, errors.New("dispatch: compressed packets not supported by verify")
}

// Literal discards the plaintext; the verify CLI reports signature status
// only, it doesn't recover the signed document.
func (g *GPGHandlers) Literal(data []byte) error {
	return nil
}

// NextPacket delegates to xpki/packet.ReadPacket, the one piece of binary
// packet framing this module implements, used here only to walk a nested
// stream inside an inflated/decrypted body — unreachable from this
// Handlers' Inflate/Decrypt, which always error first.
func (g *GPGHandlers) NextPacket(r io.Reader) (*packet.Packet, error) {
	return packet.ReadPacket(r)
}

// VerifySignature parses sig's structural fields with
// golang.org/x/crypto/openpgp/packet, finds the signing key by key ID, and
// verifies it the same way xpki/gpg.VerifySignaturePGP verifies a detached
// signature against an already-hashed document.
func (g *GPGHandlers) VerifySignature(sig *packet.Packet, info packet.SignatureInfo, hashed hash.Hash) (bool, error) {
	if hashed == nil {
		return false, errors.Annotate(ErrBadSign, "key-signature verification not supported by verify")
	}

	realSig, err := decodeSignaturePacket(sig.Body)
	if err != nil {
		return false, errors.Annotate(err, "decode signature packet")
	}

	entity := g.findKeyByID(info.KeyID)
	if entity == nil {
		return false, errors.Annotatef(ErrNoSecKey, "unknown signer key id %x", info.KeyID)
	}

	if err := entity.PrimaryKey.VerifySignature(hashed, realSig); err == nil {
		return true, nil
	}

	for _, subkey := range entity.Subkeys {
		if subkey.PublicKey == nil {
			continue
		}
		if err := subkey.PublicKey.VerifySignature(hashed, realSig); err == nil {
			return false, nil
		}
	}

	return false, errors.Annotate(ErrBadSign, "signature does not verify")
}

// decodeSignaturePacket re-frames sig's raw SIGNATURE body as a full OpenPGP
// packet (tag + length header) and hands it to
// golang.org/x/crypto/openpgp/packet.Reader, since xpki/packet.Packet's Body
// holds payload only.
func decodeSignaturePacket(body []byte) (*opgppacket.Signature, error) {
	var buf bytes.Buffer
	if err := packet.WriteTag(&buf, packet.TagSignature); err != nil {
		return nil, errors.Trace(err)
	}
	if err := packet.WriteLength(&buf, len(body)); err != nil {
		return nil, errors.Trace(err)
	}
	buf.Write(body)

	reader := opgppacket.NewReader(bytes.NewReader(buf.Bytes()))
	p, err := reader.Next()
	if err != nil {
		return nil, errors.Trace(err)
	}
	realSig, ok := p.(*opgppacket.Signature)
	if !ok {
		return nil, errors.Errorf("packet is not a signature: %T", p)
	}
	return realSig, nil
}

func (g *GPGHandlers) findKeyByID(keyID uint64) *openpgp.Entity {
	if keyID == 0 {
		return nil
	}
	for _, entity := range g.KeyRing {
		if entity.PrimaryKey != nil && entity.PrimaryKey.KeyId == keyID {
			return entity
		}
		for _, subkey := range entity.Subkeys {
			if subkey.PublicKey != nil && subkey.PublicKey.KeyId == keyID {
				return entity
			}
		}
	}
	return nil
}
