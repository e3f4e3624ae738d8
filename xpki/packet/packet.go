// Package packet models the slice of the OpenPGP packet grammar that the
// armor codec and packet stream dispatcher need to reason about: packet
// tags, partial-length framing (RFC 4880 section 4.2), and the KBNode chain
// the dispatcher uses to group related packets. It does not parse the
// cryptographic contents of any packet — that remains an external
// collaborator's job (key database, hash, cipher, public-key primitives).
package packet

import (
	"io"

	"github.com/juju/errors"
)

// Tag identifies the kind of an OpenPGP packet that this codec/dispatcher
// pair needs to recognize. Packet kinds outside this set (Trust,
// UserAttribute, AEADEncrypted, Padding, ...) are out of scope per the
// external-collaborator boundary and have no named constant here; a Tag
// holding one of their numbers prints as "UNKNOWN".
type Tag uint8

// Packet tags, matching RFC 4880 section 4.3's registry for the subset this
// codec/dispatcher pair cares about.
const (
	TagUnknown Tag = 0

	TagPubkeyEnc   Tag = 1 // Public-Key Encrypted Session Key
	TagSignature   Tag = 2
	TagSymkeyEnc   Tag = 3 // Symmetric-Key Encrypted Session Key
	TagOnePassSig  Tag = 4
	TagSecKey      Tag = 5
	TagPubKey      Tag = 6
	TagSecSubkey   Tag = 7
	TagCompressed  Tag = 8
	TagEncrypted   Tag = 9 // Symmetrically Encrypted Data (no MDC)
	TagMarker      Tag = 10
	TagPlaintext   Tag = 11 // Literal Data
	TagUserID      Tag = 13
	TagPubSubkey   Tag = 14
	TagComment     Tag = 61 // non-standard, some implementations emit this
	TagEncryptedMD Tag = 18 // Symmetrically Encrypted Integrity Protected Data
)

var tagNames = map[Tag]string{
	TagPubkeyEnc:   "PUBKEY-ENC",
	TagSignature:   "SIGNATURE",
	TagSymkeyEnc:   "SYMKEY-ENC",
	TagOnePassSig:  "ONEPASS-SIG",
	TagSecKey:      "SECKEY",
	TagPubKey:      "PUBKEY",
	TagUserID:      "USER-ID",
	TagSecSubkey:   "SEC-SUBKEY",
	TagCompressed:  "COMPRESSED",
	TagEncrypted:   "ENCRYPTED",
	TagMarker:      "MARKER",
	TagPlaintext:   "PLAINTEXT",
	TagPubSubkey:   "PUB-SUBKEY",
	TagComment:     "COMMENT",
	TagEncryptedMD: "ENCRYPTED",
}

// String returns the symbolic packet-kind name used throughout spec
// diagnostics and logging, e.g. "PUBKEY", "ONEPASS-SIG".
func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// knownBinaryTags is the set of packet tags that the armor detector (§4.2)
// will recognize from a packet header's first byte, to distinguish binary
// input from armored text.
var knownBinaryTags = map[Tag]bool{
	TagMarker:      true,
	TagSymkeyEnc:   true,
	TagPubKey:      true,
	TagSecKey:      true,
	TagPubkeyEnc:   true,
	TagSignature:   true,
	TagComment:     true,
	TagPlaintext:   true,
	TagCompressed:  true,
	TagEncrypted:   true,
	TagEncryptedMD: true,
}

// DetectBinary inspects the first byte of a stream and reports whether it
// looks like the start of a binary OpenPGP packet header (top bit set, and
// the decoded tag is one of the kinds this codec accepts as such).
func DetectBinary(first byte) (tag Tag, ok bool) {
	if first&0x80 == 0 {
		return TagUnknown, false
	}
	if first&0x40 != 0 {
		tag = Tag(first & 0x3f)
	} else {
		tag = Tag((first & 0x3f) >> 2)
	}
	return tag, knownBinaryTags[tag]
}

// Header is a decoded OpenPGP packet header: its tag and body-length
// framing. Partial is true when the body is split across one or more
// partial-length segments (new-format packets only), terminated by a final
// segment whose length was not itself marked partial.
type Header struct {
	Tag     Tag
	Length  int64 // -1 when Partial and the final segment length is not yet known
	Partial bool
}

// ReadLength reads one OpenPGP new-format body-length field from r. See RFC
// 4880 section 4.2.2.
func ReadLength(r io.Reader) (length int64, isPartial bool, err error) {
	var buf [4]byte
	if _, err = io.ReadFull(r, buf[:1]); err != nil {
		return 0, false, err
	}
	switch {
	case buf[0] < 192:
		length = int64(buf[0])
	case buf[0] < 224:
		if _, err = io.ReadFull(r, buf[1:2]); err != nil {
			return 0, false, err
		}
		length = (int64(buf[0])-192)<<8 + int64(buf[1]) + 192
	case buf[0] < 255:
		length = int64(1) << (buf[0] & 0x1f)
		isPartial = true
	default:
		if _, err = io.ReadFull(r, buf[:4]); err != nil {
			return 0, false, err
		}
		length = int64(buf[0])<<24 | int64(buf[1])<<16 | int64(buf[2])<<8 | int64(buf[3])
	}
	return length, isPartial, nil
}

// WriteLength writes length using the most compact OpenPGP new-format
// fixed-length encoding (never emits a partial-length continuation).
func WriteLength(w io.Writer, length int) error {
	var buf [5]byte
	var n int
	switch {
	case length < 192:
		buf[0] = byte(length)
		n = 1
	case length < 8384:
		l := length - 192
		buf[0] = 192 + byte(l>>8)
		buf[1] = byte(l)
		n = 2
	default:
		buf[0] = 255
		buf[1] = byte(length >> 24)
		buf[2] = byte(length >> 16)
		buf[3] = byte(length >> 8)
		buf[4] = byte(length)
		n = 5
	}
	_, err := w.Write(buf[:n])
	return err
}

// WritePartialLength writes one partial-length continuation header: a
// single byte encoding 2^power, per RFC 4880 section 4.2.2.4. power must be
// in [0,30].
func WritePartialLength(w io.Writer, power uint) error {
	if power > 30 {
		return errors.Errorf("packet: partial length power out of range: %d", power)
	}
	_, err := w.Write([]byte{byte(224 + power)})
	return err
}

// WriteTag writes a new-format packet tag byte (0x80|0x40|tag).
func WriteTag(w io.Writer, tag Tag) error {
	_, err := w.Write([]byte{0x80 | 0x40 | byte(tag)})
	return err
}

// PartialWriter streams a packet body as a sequence of OpenPGP
// partial-length segments, each sized to chunkSize (rounded down to a power
// of two), followed by one final fixed-length segment for whatever remains
// when Close is called. That final segment has length zero when nothing
// remains buffered at Close.
type PartialWriter struct {
	w         io.Writer
	chunkSize int
	buf       []byte
}

// NewPartialWriter returns a PartialWriter that flushes a partial segment
// every time its buffer reaches chunkSize bytes. The segment is chunkSize
// bytes long when chunkSize is a power of two, otherwise the largest power
// of two below it.
func NewPartialWriter(w io.Writer, chunkSize int) *PartialWriter {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	return &PartialWriter{w: w, chunkSize: chunkSize}
}

// Write buffers p, flushing complete chunkSize partial segments as they
// fill.
func (p *PartialWriter) Write(data []byte) (int, error) {
	n := len(data)
	p.buf = append(p.buf, data...)
	for len(p.buf) >= p.chunkSize {
		// log2 rounds down, so a chunkSize that isn't a power of two falls
		// back to the largest power-of-two prefix, per RFC 4880's
		// power-of-two requirement for all but the final segment.
		power := log2(p.chunkSize)
		segLen := 1 << power
		if err := WritePartialLength(p.w, uint(power)); err != nil {
			return 0, err
		}
		if _, err := p.w.Write(p.buf[:segLen]); err != nil {
			return 0, err
		}
		p.buf = p.buf[segLen:]
	}
	return n, nil
}

// Close flushes the final, fixed-length terminator segment (possibly
// length zero) and ends the partial-length stream.
func (p *PartialWriter) Close() error {
	if err := WriteLength(p.w, len(p.buf)); err != nil {
		return err
	}
	if len(p.buf) == 0 {
		return nil
	}
	_, err := p.w.Write(p.buf)
	p.buf = nil
	return err
}

func log2(n int) int {
	p := 0
	for (1 << uint(p+1)) <= n {
		p++
	}
	return p
}

// PartialReader reads an OpenPGP partial-length-framed packet body,
// transparently hiding the continuation-length headers from the caller and
// returning io.EOF at the packet's true end. See RFC 4880 section 4.2.2.4.
type PartialReader struct {
	r         io.Reader
	remaining int64
	isPartial bool
	started   bool
}

// NewPartialReader wraps r, whose first length field is (length, isPartial)
// as already read by the caller via ReadLength.
func NewPartialReader(r io.Reader, length int64, isPartial bool) *PartialReader {
	return &PartialReader{r: r, remaining: length, isPartial: isPartial, started: true}
}

func (p *PartialReader) Read(out []byte) (int, error) {
	for p.remaining == 0 {
		if !p.isPartial {
			return 0, io.EOF
		}
		var err error
		p.remaining, p.isPartial, err = ReadLength(p.r)
		if err != nil {
			return 0, err
		}
	}
	toRead := int64(len(out))
	if toRead > p.remaining {
		toRead = p.remaining
	}
	n, err := p.r.Read(out[:toRead])
	p.remaining -= int64(n)
	if n < int(toRead) && err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// Packet is an opaque OpenPGP packet as seen by the dispatcher: a tag and
// its (possibly still partial-length-framed) body. Body is fully buffered
// for every packet, large ones (encrypted data, compressed data) included;
// interpreting those bodies is left to the external collaborators (cipher
// and decompressor implementations).
type Packet struct {
	Tag  Tag
	Body []byte
}

// KBNode is one node in the dispatcher's current packet group: a linear
// chain with the group's shape implicit in packet order (root key, then
// user-ids/signatures/subkeys; or a one-pass-sig run, then plaintext, then
// signatures).
type KBNode struct {
	Packet *Packet
	Next   *KBNode
}

// Append adds pkt to the end of the chain rooted at head, returning the
// (possibly new) head.
func Append(head *KBNode, pkt *Packet) *KBNode {
	node := &KBNode{Packet: pkt}
	if head == nil {
		return node
	}
	n := head
	for n.Next != nil {
		n = n.Next
	}
	n.Next = node
	return head
}

// Each calls fn for every packet in the chain, in order.
func Each(head *KBNode, fn func(*Packet)) {
	for n := head; n != nil; n = n.Next {
		fn(n.Packet)
	}
}

// Find returns the first packet in the chain with the given tag, or nil.
func Find(head *KBNode, tag Tag) *Packet {
	for n := head; n != nil; n = n.Next {
		if n.Packet.Tag == tag {
			return n.Packet
		}
	}
	return nil
}
