package armor

import (
	"bytes"
	"strings"

	"github.com/go-phorce/pgparmor/xpki/packet"
	"github.com/juju/errors"
)

// onePassSigBody renders the fixed 13-byte body of a version-3 one-pass
// signature packet for the given hash algorithm, with a placeholder
// public-key algorithm and key ID: the real signer identity belongs to the
// external collaborator that will re-verify the detached signature the
// cleartext block's trailing armor carries, not to this codec.
func onePassSigBody(hashAlgo byte, nested bool) []byte {
	body := make([]byte, 13)
	body[0] = 3 // version
	body[1] = 0x01 // canonical-text signature class
	body[2] = hashAlgo
	body[3] = 0 // public-key algorithm: unknown, filled in by the verifier
	// body[4:12] key ID left zero.
	if nested {
		body[12] = 1
	}
	return body
}

// hashAlgoID maps an Armor Context hash bit to the RFC 4880 section 9.4
// hash-algorithm identifier used in a one-pass-signature packet.
func hashAlgoID(bit int) byte {
	switch bit {
	case HashRMD160:
		return 3
	case HashSHA1:
		return 2
	case HashMD5:
		return 1
	case HashTIGER:
		return 6
	default:
		return 0
	}
}

// cleartextReader parses a "BEGIN PGP SIGNED MESSAGE" block: it canonicalizes
// the dash-escaped text and synthesizes the ONEPASS-SIG + PLAINTEXT packet
// stream a consumer would see for an equivalent non-cleartext signed
// message. The block's
// trailing detached-signature armor is left on the shared lineSource for a
// follow-on Reader (see Reader.Remainder).
type cleartextReader struct {
	packets *bytes.Reader
}

func newCleartextReader(ctx *Context, ls *lineSource, headers map[string]string) (*cleartextReader, error) {
	if hashHdr, ok := headers["Hash"]; ok {
		for _, name := range strings.Split(hashHdr, ",") {
			name = strings.TrimSpace(strings.ToUpper(name))
			bit, ok := hashNames[name]
			if !ok {
				return nil, errors.Errorf("armor: unknown hash algorithm %q in cleartext Hash header (BADARMOR)", name)
			}
			ctx.hashes |= bit
		}
	}
	if ctx.hashes == 0 {
		ctx.hashes = HashMD5
	}
	if _, ok := headers["NotDashEscaped"]; ok {
		ctx.notDashEscaped = true
	}

	var lines []string
	for {
		line, err := ls.readLine()
		if err != nil {
			return nil, errors.New("armor: cleartext body missing trailing signature (BADARMOR)")
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(trimmed, beginPrefix) {
			ls.unreadLine(line)
			break
		}
		if ctx.notDashEscaped {
			if strings.HasPrefix(trimmed, "-") {
				logger.Debugf("api=newCleartextReader, reason=dash_prefixed_line_not_escaped, line=%q", trimmed)
			}
		} else if strings.HasPrefix(trimmed, "- ") {
			trimmed = trimmed[2:]
		}
		lines = append(lines, strings.TrimRight(trimmed, " \t"))
	}

	// Always terminated with a canonical CRLF, even when the body is
	// empty: an empty cleartext body still hashes one blank line.
	text := strings.Join(lines, "\r\n") + "\r\n"

	ctx.faked = fakedStreaming
	body, err := buildClearsignedPacketStream(ctx.hashes, []byte(text))
	if err != nil {
		return nil, err
	}
	return &cleartextReader{packets: bytes.NewReader(body)}, nil
}

// buildClearsignedPacketStream synthesizes one ONEPASS-SIG packet per
// requested hash algorithm (ordered per hashBits), followed by one
// partial-length-framed PLAINTEXT (literal data) packet carrying text.
func buildClearsignedPacketStream(hashes int, text []byte) ([]byte, error) {
	var present []int
	for _, bit := range hashBits {
		if hashes&bit != 0 {
			present = append(present, bit)
		}
	}
	if len(present) == 0 {
		present = []int{HashMD5}
	}

	var buf bytes.Buffer
	for i, bit := range present {
		if err := packet.WriteTag(&buf, packet.TagOnePassSig); err != nil {
			return nil, errors.Trace(err)
		}
		body := onePassSigBody(hashAlgoID(bit), i == len(present)-1)
		if err := packet.WriteLength(&buf, len(body)); err != nil {
			return nil, errors.Trace(err)
		}
		buf.Write(body)
	}

	if err := packet.WriteTag(&buf, packet.TagPlaintext); err != nil {
		return nil, errors.Trace(err)
	}
	pw := packet.NewPartialWriter(&buf, 8192)
	prefix := []byte{'t', 0, 0, 0, 0, 0} // format 't' (canonical text), empty filename, zero timestamp
	if _, err := pw.Write(prefix); err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := pw.Write(text); err != nil {
		return nil, errors.Trace(err)
	}
	if err := pw.Close(); err != nil {
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}

func (c *cleartextReader) Read(p []byte) (int, error) {
	return c.packets.Read(p)
}
