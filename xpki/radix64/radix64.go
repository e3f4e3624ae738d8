// Package radix64 implements the Radix-64 (base-64 plus CRC-24) encoding used
// by OpenPGP ASCII armor, see RFC 4880 section 6. It is a streaming codec: an
// Encoder and a Decoder each carry a small carry buffer across Write/Read
// calls so that callers can feed them arbitrary chunk sizes.
package radix64

import (
	"io"
	"sync"

	"github.com/go-phorce/pgparmor/xlog"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pgparmor/xpki", "radix64")

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const (
	// LineWrap is the number of radix-64 characters per wrapped output line
	// (64 chars, i.e. 16 quartets of 4 chars, per spec).
	LineWrap = 64

	crc24Init = 0xb704ce
	crc24Poly = 0x1864cfb
	crc24Mask = 0xffffff

	invalid = 0xff
)

var (
	decodeTable [256]byte
	crcTable    [256]uint32
	tablesOnce  sync.Once
)

// initTables builds the CRC-24 and base64 decode tables once, process-wide.
// Any race between concurrent first calls is benign: every caller computes
// the same fixed tables.
func initTables() {
	tablesOnce.Do(func() {
		for i := range decodeTable {
			decodeTable[i] = invalid
		}
		for i, c := range alphabet {
			decodeTable[byte(c)] = byte(i)
		}

		for i := 0; i < 256; i++ {
			crc := uint32(i) << 16
			for bit := 0; bit < 8; bit++ {
				crc <<= 1
				if crc&0x1000000 != 0 {
					crc ^= crc24Poly
				}
			}
			crcTable[i] = crc & crc24Mask
		}
	})
}

// UpdateCRC folds one decoded byte into a running CRC-24 accumulator.
func UpdateCRC(crc uint32, b byte) uint32 {
	initTables()
	return ((crc << 8) ^ crcTable[((crc>>16)&0xff)^uint32(b)]) & crc24Mask
}

// InitCRC returns the initial CRC-24 accumulator value.
func InitCRC() uint32 { return crc24Init }

// EncodeQuad renders a 24-bit CRC as the 4-character radix-64 trailer.
func EncodeQuad(crc uint32) [4]byte {
	initTables()
	var b [3]byte
	b[0] = byte(crc >> 16)
	b[1] = byte(crc >> 8)
	b[2] = byte(crc)
	var out [4]byte
	encodeQuad(out[:], b[:], 3)
	return out
}

func encodeQuad(dst, src []byte, n int) {
	var v uint32
	v = uint32(src[0]) << 16
	if n > 1 {
		v |= uint32(src[1]) << 8
	}
	if n > 2 {
		v |= uint32(src[2])
	}
	dst[0] = alphabet[(v>>18)&0x3f]
	dst[1] = alphabet[(v>>12)&0x3f]
	if n > 1 {
		dst[2] = alphabet[(v>>6)&0x3f]
	} else {
		dst[2] = '='
	}
	if n > 2 {
		dst[3] = alphabet[v&0x3f]
	} else {
		dst[3] = '='
	}
}

// Encoder is a streaming Radix-64 body encoder. It wraps output at LineWrap
// characters per line and accumulates a CRC-24 over everything written. It
// does not itself emit the "=CRC" trailer line or the BEGIN/END envelope;
// that is the armor Filter's responsibility (see xpki/armor), matching the
// separation of concerns between codec and envelope described in the design.
type Encoder struct {
	w    io.Writer
	carry [2]byte
	ncarry int
	col    int // radix-64 characters written on the current line
	crc    uint32
	closed bool
}

// NewEncoder returns an Encoder that writes wrapped Radix-64 text to w.
func NewEncoder(w io.Writer) *Encoder {
	initTables()
	return &Encoder{w: w, crc: crc24Init}
}

// CRC returns the running CRC-24 accumulator over all bytes written so far.
func (e *Encoder) CRC() uint32 { return e.crc }

func (e *Encoder) emitQuad(quad [4]byte) error {
	if e.col == LineWrap {
		if _, err := e.w.Write([]byte{'\n'}); err != nil {
			return err
		}
		e.col = 0
	}
	if _, err := e.w.Write(quad[:]); err != nil {
		return err
	}
	e.col += 4
	return nil
}

// Write encodes p, 3 input bytes at a time, carrying any remainder to the
// next call.
func (e *Encoder) Write(p []byte) (int, error) {
	if e.closed {
		return 0, errors.New("radix64: write after Close")
	}
	n := len(p)
	for _, b := range p {
		e.crc = UpdateCRC(e.crc, b)
	}

	group := make([]byte, 0, 3)
	group = append(group, e.carry[:e.ncarry]...)
	rest := p
	for len(group) > 0 || len(rest) > 0 {
		for len(group) < 3 && len(rest) > 0 {
			group = append(group, rest[0])
			rest = rest[1:]
		}
		if len(group) < 3 {
			break // incomplete trailing group, carried to next Write/Close
		}
		var quad [4]byte
		encodeQuad(quad[:], group, 3)
		if err := e.emitQuad(quad); err != nil {
			return 0, err
		}
		group = group[:0]
	}

	e.ncarry = copy(e.carry[:], group)
	return n, nil
}

// Close flushes any partial trailing group, padded with '=', but does not
// write the CRC trailer or END line.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.ncarry == 0 {
		return nil
	}
	var quad [4]byte
	encodeQuad(quad[:], e.carry[:e.ncarry], e.ncarry)
	return e.emitQuad(quad)
}

// Decoder is a streaming Radix-64 body decoder. Callers Read() decoded bytes
// until io.EOF; Err() reports a malformed-CRC or CRC-mismatch failure once
// EOF is reached. Non-alphabet characters (other than the terminating '=')
// are skipped with a recoverable warning, and whitespace/line breaks are
// always skipped.
type Decoder struct {
	r      io.ByteReader
	carry  [4]byte
	ncarry int
	crc    uint32
	done   bool
	err    error
	pending []byte
}

// NewDecoder returns a Decoder that reads wrapped Radix-64 text from r.
func NewDecoder(r io.ByteReader) *Decoder {
	initTables()
	return &Decoder{r: r, crc: crc24Init}
}

// Err returns the terminal armor error, if decoding ended abnormally.
func (d *Decoder) Err() error { return d.err }

func skippable(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// Read decodes up to len(p) bytes into p. It returns io.EOF once the '='
// sentinel and a valid CRC trailer have been consumed.
func (d *Decoder) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	n := 0
	for n < len(p) {
		if len(d.pending) > 0 {
			c := copy(p[n:], d.pending)
			d.pending = d.pending[c:]
			n += c
			continue
		}
		if d.done {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		out, err := d.decodeGroup()
		if err != nil {
			d.err = err
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if out == nil {
			// reached '=' and validated the CRC trailer
			d.done = true
			continue
		}
		d.pending = out
	}
	return n, nil
}

// nextChar returns the next radix-64 alphabet character, skipping whitespace
// and warning on (then skipping) any other invalid byte. It returns '=' when
// the end-of-data sentinel is seen.
func (d *Decoder) nextChar() (byte, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if skippable(b) {
			continue
		}
		if b == '=' {
			return '=', nil
		}
		if decodeTable[b] == invalid {
			logger.Debugf("api=nextChar, reason=invalid_character, byte=%d", b)
			continue
		}
		return b, nil
	}
}

// decodeGroup reads one quartet of radix-64 characters and returns the
// decoded bytes, or nil once the '=' sentinel (and a valid trailing CRC) has
// been consumed. A padded final quartet returns its own bytes and marks the
// decoder done, its CRC trailer having been consumed as well.
//
// The final data quartet may itself be '='-padded (one pad byte for a
// 2-byte leftover, two pad bytes for a 1-byte leftover). The CRC trailer
// that follows begins with its own, separate '=' sigil. So the first '='
// seen at quartet position 0 is always the CRC sigil (no data was pending);
// a '=' seen at position 2 or 3 is intra-quartet padding, and any remaining
// pad bytes of that same quartet must be skipped before the CRC sigil is
// found.
func (d *Decoder) decodeGroup() ([]byte, error) {
	var raw [4]byte
	count := 0
	for count < 4 {
		c, err := d.nextChar()
		if err != nil {
			if err == io.EOF {
				return nil, errors.New("radix64: premature EOF in armor body")
			}
			return nil, err
		}
		if c == '=' {
			if count == 0 {
				return nil, d.readCRCQuad()
			}
			return d.finalGroup(raw, count)
		}
		raw[count] = decodeTable[c]
		count++
	}

	var out [3]byte
	out[0] = raw[0]<<2 | raw[1]>>4
	out[1] = raw[1]<<4 | raw[2]>>2
	out[2] = raw[2]<<6 | raw[3]
	for _, b := range out {
		d.crc = UpdateCRC(d.crc, b)
	}
	return out[:], nil
}

// finalGroup decodes the last, '='-padded radix-64 quartet (count valid
// chars, 2 or 3) then skips the quartet's own remaining pad bytes, locates
// the CRC sigil, and validates the CRC quartet that follows it.
func (d *Decoder) finalGroup(raw [4]byte, count int) ([]byte, error) {
	var out []byte
	switch count {
	case 2:
		out = []byte{raw[0]<<2 | raw[1]>>4}
	case 3:
		out = []byte{raw[0]<<2 | raw[1]>>4, raw[1]<<4 | raw[2]>>2}
	default:
		return nil, errors.Errorf("radix64: malformed final group, %d valid chars before pad", count)
	}
	for _, b := range out {
		d.crc = UpdateCRC(d.crc, b)
	}

	remainingPads := 4 - count - 1
	for i := 0; i < remainingPads; i++ {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, errors.New("radix64: premature EOF in armor body")
		}
		if skippable(b) {
			i--
			continue
		}
		if b != '=' {
			return nil, errors.New("radix64: malformed padding in final group")
		}
	}

	c, err := d.nextChar()
	if err != nil {
		return nil, errors.New("radix64: premature EOF reading CRC")
	}
	if c != '=' {
		return nil, errors.New("radix64: expected CRC sigil")
	}
	if err := d.readCRCQuad(); err != nil {
		return nil, err
	}
	d.done = true
	return out, nil
}

// readCRCQuad consumes the 4-character CRC-24 quartet following the sigil
// '=' (already consumed by the caller) and validates it against the
// accumulated running CRC.
func (d *Decoder) readCRCQuad() error {
	var raw [4]byte
	for i := 0; i < 4; i++ {
		b, err := d.r.ReadByte()
		if err != nil {
			return errors.New("radix64: premature EOF reading CRC")
		}
		if skippable(b) {
			i--
			continue
		}
		if decodeTable[b] == invalid {
			return errors.New("radix64: malformed CRC")
		}
		raw[i] = decodeTable[b]
	}
	// raw quartet holds 4x6 bits = 24 bits exactly, matching the CRC width.
	got := uint32(raw[0])<<18 | uint32(raw[1])<<12 | uint32(raw[2])<<6 | uint32(raw[3])
	if got != d.crc {
		return errors.Errorf("radix64: CRC mismatch: armor says %06x, calculated %06x", got, d.crc)
	}
	return nil
}
