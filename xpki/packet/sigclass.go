package packet

// SignatureInfo holds the structural fields of a SIGNATURE or ONEPASS-SIG
// packet that the dispatcher needs for sig-class dispatch: the signature
// class, the hash and public-key algorithm IDs, and the
// issuing key ID where the framing makes it available. It does not
// validate or verify anything cryptographic about the packet.
type SignatureInfo struct {
	Class      byte
	HashAlgo   byte
	PubKeyAlgo byte
	KeyID      uint64
	// Nested is only meaningful for ONEPASS-SIG: true when this is the last
	// one-pass packet in a chain (RFC 4880 section 5.4).
	Nested bool
}

// Canonical-text and binary signature classes, per RFC 4880 section 5.2.1.
const (
	SigClassBinary byte = 0x00
	SigClassText   byte = 0x01
)

// IsKeySignatureClass reports whether class is one of the key/subkey
// certification or revocation classes (0x10-0x18, 0x20, 0x30) that
// the dispatcher routes to key-signature verification rather than hashing a
// literal-data stream.
func IsKeySignatureClass(class byte) bool {
	switch {
	case class >= 0x10 && class <= 0x18:
		return true
	case class == 0x20, class == 0x30:
		return true
	default:
		return false
	}
}

// ParseOnePassSig extracts the structural fields of a version-3 ONEPASS-SIG
// packet body, as fabricated by xpki/armor's cleartext synthesis (13 bytes:
// version, sigClass, hashAlgo, pubKeyAlgo, 8-byte keyID, nested flag).
func ParseOnePassSig(body []byte) (SignatureInfo, bool) {
	if len(body) < 13 || body[0] != 3 {
		return SignatureInfo{}, false
	}
	var keyID uint64
	for i := 0; i < 8; i++ {
		keyID = keyID<<8 | uint64(body[4+i])
	}
	return SignatureInfo{
		Class:      body[1],
		HashAlgo:   body[2],
		PubKeyAlgo: body[3],
		KeyID:      keyID,
		Nested:     body[12] != 0,
	}, true
}

// ParseSignature extracts the structural fields of a SIGNATURE packet body
// for versions 3 and 4 (RFC 4880 section 5.2.2/5.2.3). It does not inspect
// the MPIs carrying the actual signature value. For version 4, the key ID
// is recovered from the Issuer subpacket (type 16) if present among the
// hashed or unhashed subpacket data; otherwise KeyID is zero and the caller
// must fall back to other means of identifying the signer.
func ParseSignature(body []byte) (SignatureInfo, bool) {
	if len(body) < 1 {
		return SignatureInfo{}, false
	}
	switch body[0] {
	case 3:
		if len(body) < 19 {
			return SignatureInfo{}, false
		}
		var keyID uint64
		for i := 0; i < 8; i++ {
			keyID = keyID<<8 | uint64(body[7+i])
		}
		return SignatureInfo{
			Class:      body[2],
			PubKeyAlgo: body[15],
			HashAlgo:   body[16],
			KeyID:      keyID,
		}, true
	case 4:
		if len(body) < 6 {
			return SignatureInfo{}, false
		}
		info := SignatureInfo{
			Class:      body[1],
			PubKeyAlgo: body[2],
			HashAlgo:   body[3],
		}
		pos := 4
		hashedLen := int(body[pos])<<8 | int(body[pos+1])
		pos += 2
		if pos+hashedLen > len(body) {
			return info, true
		}
		if keyID, ok := findIssuerSubpacket(body[pos : pos+hashedLen]); ok {
			info.KeyID = keyID
		}
		pos += hashedLen
		if pos+2 > len(body) {
			return info, true
		}
		unhashedLen := int(body[pos])<<8 | int(body[pos+1])
		pos += 2
		if pos+unhashedLen > len(body) {
			return info, true
		}
		if info.KeyID == 0 {
			if keyID, ok := findIssuerSubpacket(body[pos : pos+unhashedLen]); ok {
				info.KeyID = keyID
			}
		}
		return info, true
	default:
		return SignatureInfo{}, false
	}
}

// subpacketTagIssuer is the RFC 4880 section 5.2.3.5 signature subpacket
// type carrying the 8-byte issuer key ID.
const subpacketTagIssuer = 16

func findIssuerSubpacket(data []byte) (uint64, bool) {
	for len(data) > 0 {
		length, n := subpacketLength(data)
		if n == 0 || n+length > len(data) {
			return 0, false
		}
		body := data[n : n+length]
		data = data[n+length:]
		if len(body) == 0 {
			continue
		}
		tag := body[0] &^ 0x80
		if tag == subpacketTagIssuer && len(body) >= 9 {
			var keyID uint64
			for i := 0; i < 8; i++ {
				keyID = keyID<<8 | uint64(body[1+i])
			}
			return keyID, true
		}
	}
	return 0, false
}

// subpacketLength decodes one RFC 4880 section 5.2.3.1 subpacket length
// header, returning the body length and the number of bytes the length
// header itself occupied.
func subpacketLength(data []byte) (length, headerLen int) {
	if len(data) < 1 {
		return 0, 0
	}
	first := data[0]
	switch {
	case first < 192:
		return int(first), 1
	case first < 255:
		if len(data) < 2 {
			return 0, 0
		}
		return (int(first)-192)<<8 + int(data[1]) + 192, 2
	default:
		if len(data) < 5 {
			return 0, 0
		}
		return int(data[1])<<24 | int(data[2])<<16 | int(data[3])<<8 | int(data[4]), 5
	}
}
