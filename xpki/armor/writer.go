package armor

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-phorce/pgparmor/xpki/radix64"
	"github.com/juju/errors"
)

// headerOrder fixes the emission order of well-known header lines; any
// caller-supplied header not in this list is emitted afterwards in sorted
// key order, for deterministic output.
var headerOrder = []string{"Version", "Comment", "MessageID", "Hash", "Charset"}

// DefaultVersion is the value of the auto-injected "Version:" header, unless
// the caller's HdrLines already supplies one.
const DefaultVersion = "pgparmor"

// Writer streams an armored envelope: BEGIN line, a Version header, optional
// caller header lines, a blank separator, the Radix-64 body, the CRC-24
// trailer line and the END line. The envelope (BEGIN line through the blank
// separator) is emitted lazily, on the first Write call, matching the FLUSH
// filter contract. Close must be called to flush the body and emit the
// trailer.
type Writer struct {
	ctx     *Context
	bw      *bufio.Writer
	enc     *radix64.Encoder
	started bool
	wrote   bool
	closed  bool
}

// NewWriter validates ctx and returns a Writer ready to stream the body via
// Write; no bytes are written to w until the first Write call.
func NewWriter(ctx *Context, w io.Writer) (*Writer, error) {
	if ctx.OnlyKeyblocks && !onlyKeyblockWhats[ctx.What] {
		return nil, errors.Errorf("armor: %s is not a keyblock variant", ctx.What)
	}
	bw := bufio.NewWriter(w)
	return &Writer{ctx: ctx, bw: bw, enc: radix64.NewEncoder(bw)}, nil
}

func (a *Writer) start() error {
	if a.started {
		return nil
	}
	a.started = true
	if _, err := fmt.Fprintf(a.bw, "-----BEGIN PGP %s-----\n", a.ctx.What); err != nil {
		return errors.Trace(err)
	}
	hdr := map[string]string{}
	for k, v := range a.ctx.HdrLines {
		hdr[k] = v
	}
	if _, ok := hdr["Version"]; !ok {
		hdr["Version"] = DefaultVersion
	}
	for _, name := range orderedHeaderKeys(hdr) {
		value := hdr[name]
		if name == "Comment" {
			value = escapeComment(value)
		}
		if _, err := fmt.Fprintf(a.bw, "%s: %s\n", name, value); err != nil {
			return errors.Trace(err)
		}
	}
	_, err := a.bw.WriteString("\n")
	return errors.Trace(err)
}

// escapeComment backslash-escapes newlines, carriage returns and vertical
// bars in a user-supplied Comment header value so it stays a single line.
func escapeComment(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "\n", "\\n", "\r", "\\r", "|", "\\|")
	return r.Replace(s)
}

func orderedHeaderKeys(hdr map[string]string) []string {
	seen := make(map[string]bool, len(hdr))
	var keys []string
	for _, k := range headerOrder {
		if _, ok := hdr[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range hdr {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Write encodes p into the armored body, emitting the envelope header first
// if this is the first call.
func (a *Writer) Write(p []byte) (int, error) {
	if err := a.start(); err != nil {
		return 0, err
	}
	if len(p) > 0 {
		a.wrote = true
	}
	return a.enc.Write(p)
}

// Close flushes the Radix-64 body, writes the CRC-24 trailer and the END
// line. It does not close the underlying io.Writer. Calling Close on a
// Writer that never received a Write call still emits an empty, valid
// envelope.
func (a *Writer) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.start(); err != nil {
		return err
	}
	if err := a.enc.Close(); err != nil {
		return errors.Trace(err)
	}
	quad := radix64.EncodeQuad(a.enc.CRC())
	// The Radix-64 body never ends its own last line with a newline, so one
	// is needed here to terminate it before the CRC line - but only when a
	// body was actually written; an empty body has nothing to terminate and
	// the blank separator line from start() already precedes the CRC line.
	sep := "\n"
	if !a.wrote {
		sep = ""
	}
	if _, err := fmt.Fprintf(a.bw, "%s=%s\n", sep, quad[:]); err != nil {
		return errors.Trace(err)
	}
	if _, err := fmt.Fprintf(a.bw, "-----END PGP %s-----\n", a.ctx.What); err != nil {
		return errors.Trace(err)
	}
	a.ctx.anyData = a.wrote
	return errors.Trace(a.bw.Flush())
}
