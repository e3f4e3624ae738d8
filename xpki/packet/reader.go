package packet

import (
	"io"
	"io/ioutil"

	"github.com/juju/errors"
)

// ReadPacket reads one OpenPGP packet header (old- or new-format, RFC 4880
// section 4.2) from r and returns its tag and fully buffered body. It
// returns io.EOF (unwrapped) when r is exhausted before a new packet
// starts, so callers can loop until EOF exactly like bufio.Reader.ReadByte.
// This is the one piece of "packet parsing" this module implements itself:
// tag and length framing only, never the cryptographic payload within —
// consistent with this package's boundary of handling framing only, never
// the cryptographic payload within a packet's body.
func ReadPacket(r io.Reader) (*Packet, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}
	b := first[0]
	if b&0x80 == 0 {
		return nil, errors.Errorf("packet: invalid packet header byte 0x%x", b)
	}

	if b&0x40 != 0 {
		tag := Tag(b & 0x3f)
		length, isPartial, err := ReadLength(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
		body, err := readBody(r, length, isPartial)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return &Packet{Tag: tag, Body: body}, nil
	}

	tag := Tag((b & 0x3f) >> 2)
	var body []byte
	switch b & 0x3 {
	case 0:
		var lb [1]byte
		if _, err := io.ReadFull(r, lb[:]); err != nil {
			return nil, errors.Trace(err)
		}
		body = make([]byte, lb[0])
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, errors.Trace(err)
		}
	case 1:
		var lb [2]byte
		if _, err := io.ReadFull(r, lb[:]); err != nil {
			return nil, errors.Trace(err)
		}
		body = make([]byte, int(lb[0])<<8|int(lb[1]))
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, errors.Trace(err)
		}
	case 2:
		var lb [4]byte
		if _, err := io.ReadFull(r, lb[:]); err != nil {
			return nil, errors.Trace(err)
		}
		n := int(lb[0])<<24 | int(lb[1])<<16 | int(lb[2])<<8 | int(lb[3])
		body = make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, errors.Trace(err)
		}
	case 3:
		var err error
		body, err = ioutil.ReadAll(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return &Packet{Tag: tag, Body: body}, nil
}

func readBody(r io.Reader, length int64, isPartial bool) ([]byte, error) {
	if !isPartial {
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		return body, nil
	}
	return ioutil.ReadAll(NewPartialReader(r, length, isPartial))
}
