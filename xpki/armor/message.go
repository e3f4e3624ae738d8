package armor

import (
	"io"
	"io/ioutil"

	"github.com/juju/errors"
)

// Message is one fully-read armored envelope: its detected type,
// informational headers, and decoded body. It is the single-block
// counterpart to xpki/gpg.KeyRing's "read everything, return the typed
// result" convenience, for CLI callers that don't need to drive a Filter by
// hand.
type Message struct {
	Type    string
	Headers map[string]string
	Bypass  bool
	Body    []byte
}

// ReadMessage reads one armored envelope fully into memory, returning its
// type, headers and decoded body.
// Grounded on xpki/gpg/keyring.go's loop-until-no-more-blocks pattern,
// generalized here to a single message rather than a keyring of blocks.
func ReadMessage(ctx *Context, r io.Reader) (*Message, error) {
	ar, err := NewReader(ctx, r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	body, err := ioutil.ReadAll(ar)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Message{
		Type:    ar.Type(),
		Headers: ar.Headers(),
		Bypass:  ar.Bypass(),
		Body:    body,
	}, nil
}

// WriteMessage writes body as one armored envelope of the variant and
// headers named by ctx. It is the whole-buffer write counterpart to
// ReadMessage.
func WriteMessage(ctx *Context, w io.Writer, body []byte) error {
	aw, err := NewWriter(ctx, w)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := aw.Write(body); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(aw.Close())
}
