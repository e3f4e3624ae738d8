package armor

import (
	"bufio"
	"io"
	"strings"

	"github.com/go-phorce/pgparmor/xpki/packet"
	"github.com/go-phorce/pgparmor/xpki/radix64"
	"github.com/juju/errors"
)

const (
	beginPrefix = "-----BEGIN PGP "
	endPrefix   = "-----END PGP "
	tailMarker  = "-----"
)

// lineSource is a line-buffered reader with one line of pushback, shared
// between the header scanner, the cleartext parser and (via Reader.Remainder)
// a follow-on Reader for a cleartext signature's trailing detached-signature
// armor block. It implements io.Reader and io.ByteReader so it can also feed
// a radix64.Decoder directly.
type lineSource struct {
	br      *bufio.Reader
	pending string
	hasLine bool
}

func newLineSource(r io.Reader) *lineSource {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &lineSource{br: br}
}

func (l *lineSource) readLine() (string, error) {
	if l.hasLine {
		l.hasLine = false
		s := l.pending
		l.pending = ""
		return s, nil
	}
	line, err := l.br.ReadString('\n')
	if len(line) == 0 && err != nil {
		return "", err
	}
	return line, nil
}

func (l *lineSource) unreadLine(s string) {
	l.pending = s
	l.hasLine = true
}

func (l *lineSource) peekByte() (byte, error) {
	if l.hasLine {
		if len(l.pending) == 0 {
			return 0, io.EOF
		}
		return l.pending[0], nil
	}
	b, err := l.br.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadByte implements io.ByteReader.
func (l *lineSource) ReadByte() (byte, error) {
	if l.hasLine {
		if len(l.pending) == 0 {
			l.hasLine = false
			return l.ReadByte()
		}
		b := l.pending[0]
		l.pending = l.pending[1:]
		if len(l.pending) == 0 {
			l.hasLine = false
		}
		return b, nil
	}
	return l.br.ReadByte()
}

// Read implements io.Reader.
func (l *lineSource) Read(p []byte) (int, error) {
	if l.hasLine {
		n := copy(p, l.pending)
		l.pending = l.pending[n:]
		if len(l.pending) == 0 {
			l.hasLine = false
		}
		if n > 0 {
			return n, nil
		}
	}
	return l.br.Read(p)
}

// Reader decodes one armored envelope read from the underlying stream. If
// the stream turns out to hold binary (non-armored) OpenPGP packets instead,
// Reader transparently bypasses the armor machinery and returns the raw
// bytes.
type Reader struct {
	ctx *Context
	ls  *lineSource

	bypass    bool
	bypassTag packet.Tag

	what    What
	headers map[string]string

	dec       *radix64.Decoder
	cleartext *cleartextReader
	endFound  bool
}

// NewReader searches the stream for a BEGIN header (or, failing that,
// detects raw binary packets) and returns a Reader positioned to stream the
// decoded body. r may be the io.Reader returned by a previous Reader's
// Remainder method, to continue decoding a cleartext signature's trailing
// detached-signature block from the same underlying stream.
func NewReader(ctx *Context, r io.Reader) (*Reader, error) {
	ls, ok := r.(*lineSource)
	if !ok {
		ls = newLineSource(r)
	}
	ctx.inpChecked = true

	if first, err := ls.peekByte(); err == nil {
		if tag, isBinary := packet.DetectBinary(first); isBinary {
			ctx.inpBypass = true
			return &Reader{ctx: ctx, ls: ls, bypass: true, bypassTag: tag}, nil
		}
	}

	what, headers, err := findHeader(ctx, ls)
	if err != nil {
		return nil, err
	}
	ctx.anyData = true

	a := &Reader{ctx: ctx, ls: ls, what: what, headers: headers}
	if what == WhatSignedMessage {
		ctx.inCleartext = true
		cr, err := newCleartextReader(ctx, ls, headers)
		if err != nil {
			return nil, err
		}
		a.cleartext = cr
		return a, nil
	}
	a.dec = radix64.NewDecoder(ls)
	return a, nil
}

// Type returns the armor variant named by the BEGIN line that was matched.
func (a *Reader) Type() string {
	if a.bypass {
		return a.bypassTag.String()
	}
	return a.what.String()
}

// Headers returns the informational header lines collected between the
// BEGIN line and the blank separator (e.g. "Version", "Comment").
func (a *Reader) Headers() map[string]string { return a.headers }

// Bypass reports whether the input was raw binary OpenPGP data rather than
// an armored envelope.
func (a *Reader) Bypass() bool { return a.bypass }

// Remainder returns the shared underlying stream positioned just after this
// Reader's payload, so a cleartext signature's trailing detached-signature
// armor block can be decoded by passing it to a second, independent call to
// NewReader.
func (a *Reader) Remainder() io.Reader { return a.ls }

func (a *Reader) Read(p []byte) (int, error) {
	switch {
	case a.bypass:
		return a.ls.Read(p)
	case a.cleartext != nil:
		return a.cleartext.Read(p)
	default:
		n, err := a.dec.Read(p)
		if err == io.EOF {
			if derr := a.dec.Err(); derr != nil {
				return n, derr
			}
			if !a.endFound {
				a.endFound = true
				if eerr := findEndLine(a.ls, a.what); eerr != nil {
					return n, eerr
				}
			}
		}
		return n, err
	}
}

// findHeader scans lines until it finds a "-----BEGIN PGP <TYPE>-----" line
// acceptable under ctx.OnlyKeyblocks, then parses the header-line block up
// to the blank separator. Lines longer than MaxLineLen are counted as
// truncated and skipped rather than matched.
func findHeader(ctx *Context, ls *lineSource) (What, map[string]string, error) {
	for {
		line, err := ls.readLine()
		if err != nil {
			return 0, nil, errors.New("armor: no BEGIN header found (BADARMOR)")
		}
		if len(line) > MaxLineLen {
			ctx.truncated++
			continue
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(trimmed, beginPrefix) || !strings.HasSuffix(trimmed, tailMarker) {
			continue
		}
		typ := strings.TrimSuffix(strings.TrimPrefix(trimmed, beginPrefix), tailMarker)
		what, ok := whatFromHeader(typ)
		if !ok {
			continue
		}
		if ctx.OnlyKeyblocks && !onlyKeyblockWhats[what] {
			continue
		}
		headers, err := parseHeaderBlock(ls, what)
		if err != nil {
			return 0, nil, err
		}
		return what, headers, nil
	}
}

// cleartextHeaderNames is the only set of header names permitted inside a
// "BEGIN PGP SIGNED MESSAGE" header block; anything else is a fatal armor
// error rather than a tolerated, ignored line.
var cleartextHeaderNames = map[string]bool{
	"Hash":           true,
	"NotDashEscaped": true,
}

// parseHeaderBlock reads "Name: Value" lines up to (and consuming) the
// blank separator line that precedes the body. For WhatSignedMessage, any
// line that doesn't parse as "Name: Value" or whose name isn't Hash/
// NotDashEscaped is fatal (BADARMOR); other armor variants tolerate and
// ignore unrecognized header lines the way GnuPG does.
func parseHeaderBlock(ls *lineSource, what What) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := ls.readLine()
		if err != nil {
			return nil, errors.New("armor: truncated header block (BADARMOR)")
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			return headers, nil
		}
		name, value, ok := splitHeaderLine(trimmed)
		if !ok {
			if what == WhatSignedMessage {
				return nil, errors.Errorf("armor: invalid cleartext header %q (BADARMOR)", trimmed)
			}
			// Non-conformant header line: GnuPG tolerates and ignores it
			// rather than failing the whole armor.
			logger.Debugf("api=parseHeaderBlock, reason=unrecognized_header, line=%q", trimmed)
			continue
		}
		if what == WhatSignedMessage && !cleartextHeaderNames[name] {
			return nil, errors.Errorf("armor: unknown cleartext header %q (BADARMOR)", name)
		}
		headers[name] = value
	}
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	return name, value, true
}

// findEndLine consumes up to and including the matching END line for what.
func findEndLine(ls *lineSource, what What) error {
	want := endPrefix + what.String() + tailMarker
	for {
		line, err := ls.readLine()
		if err != nil {
			return errors.New("armor: missing END line (BADARMOR)")
		}
		if strings.HasPrefix(strings.TrimRight(line, "\r\n"), want) {
			return nil
		}
	}
}
