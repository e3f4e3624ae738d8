// Package armor implements the OpenPGP ASCII Armor envelope (RFC 4880
// section 6): a streaming codec between a binary packet stream and a
// text-safe envelope of dashed header lines, a Radix-64 body and a CRC-24
// trailer, plus the cleartext-signature mode that reconstructs a synthetic
// packet stream from a human-readable signed document.
//
// Reader and Writer (see reader.go, writer.go) are the streaming entry
// points; Filter (filter.go) adapts them to the pull-based pipeline contract
// used elsewhere in this module. Decode and Encode, below, are a
// whole-buffer convenience pair kept compatible with this package's
// original generic-PEM-style API, for callers (xpki/gpg) that only ever
// hold the armored data fully in memory.
package armor

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/go-phorce/pgparmor/xlog"
	"github.com/go-phorce/pgparmor/xpki/radix64"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pgparmor/xpki", "armor")

// A Block represents one decoded OpenPGP armored structure.
//
// The encoded form is:
//    -----BEGIN PGP Type-----
//    Headers
//
//    Radix-64 encoded Bytes
//    '=' Radix-64 encoded CRC-24 checksum
//    -----END PGP Type-----
// where Headers is a possibly empty sequence of Key: Value lines.
type Block struct {
	Type    string            // e.g. "PGP PUBLIC KEY BLOCK", taken from the BEGIN line.
	Headers map[string]string // Optional headers.
	Bytes   []byte            // The decoded body.
	CRC     uint32
}

// getLine returns the first \r\n or \n delineated line from data, without
// trailing whitespace or the line terminator, and the remainder of data
// (also without the line terminator). The remainder is always smaller than
// data, so repeated calls terminate.
func getLine(data []byte) (line, rest []byte) {
	i := bytes.IndexByte(data, '\n')
	var j int
	if i < 0 {
		i = len(data)
		j = i
	} else {
		j = i + 1
		if i > 0 && data[i-1] == '\r' {
			i--
		}
	}
	return bytes.TrimRight(data[0:i], " \t"), data[j:]
}

// removeWhitespace returns a copy of data with spaces, tabs, CRs and LFs
// removed.
func removeWhitespace(data []byte) []byte {
	result := make([]byte, len(data))
	n := 0
	for _, b := range data {
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			continue
		}
		result[n] = b
		n++
	}
	return result[0:n]
}

var pemStart = []byte("\n-----BEGIN PGP ")
var pemEnd = []byte("\n-----END PGP ")
var pemEndOfLine = []byte("-----")

// Decode finds the next armored block in data and returns it along with the
// unconsumed remainder, so that callers can loop over data looking for
// multiple concatenated blocks (as xpki/gpg.KeyRing does). If no armored
// data is found, p is nil and rest is the whole of data.
func Decode(data []byte) (p *Block, rest []byte) {
	rest = data
	// pemStart begins with a newline; at the very start of data we accept
	// the marker without it.
	if bytes.HasPrefix(data, pemStart[1:]) {
		rest = rest[len(pemStart)-1 : len(data)]
	} else if i := bytes.Index(data, pemStart); i >= 0 {
		rest = rest[i+len(pemStart) : len(data)]
	} else {
		logger.Debug("reason=prefix_not_found")
		return nil, data
	}

	typeLine, rest := getLine(rest)
	if !bytes.HasSuffix(typeLine, pemEndOfLine) {
		logger.Debug("reason=suffix_not_found")
		return decodeError(data, rest)
	}
	typeLine = typeLine[0 : len(typeLine)-len(pemEndOfLine)]

	p = &Block{
		Headers: make(map[string]string),
		Type:    "PGP " + string(typeLine),
	}

	for {
		if len(rest) == 0 {
			return nil, data
		}
		line, next := getLine(rest)
		i := bytes.IndexByte(line, ':')
		if i == -1 {
			break
		}
		key, val := line[:i], line[i+1:]
		key = bytes.TrimSpace(key)
		val = bytes.TrimSpace(val)
		p.Headers[string(key)] = string(val)
		rest = next
	}

	var endIndex, endTrailerIndex int
	// If there were no headers, the END line might occur immediately,
	// without a leading newline.
	if len(p.Headers) == 0 && bytes.HasPrefix(rest, pemEnd[1:]) {
		endIndex = 0
		endTrailerIndex = len(pemEnd) - 1
	} else {
		endIndex = bytes.Index(rest, pemEnd)
		endTrailerIndex = endIndex + len(pemEnd)
	}
	if endIndex < 0 {
		logger.Debug("reason=end_index_not_found")
		return decodeError(data, rest)
	}

	endTrailer := rest[endTrailerIndex:]
	endTrailerLen := len(typeLine) + len(pemEndOfLine)
	if len(endTrailer) < endTrailerLen {
		logger.Debug("reason=end_trailer_short")
		return decodeError(data, rest)
	}
	restOfEndLine := endTrailer[endTrailerLen:]
	endTrailer = endTrailer[:endTrailerLen]
	if !bytes.HasPrefix(endTrailer, typeLine) || !bytes.HasSuffix(endTrailer, pemEndOfLine) {
		return decodeError(data, rest)
	}
	if s, _ := getLine(restOfEndLine); len(s) != 0 {
		return decodeError(data, rest)
	}

	body := removeWhitespace(rest[:endIndex])
	blockLen := len(body)
	if blockLen < 5 || body[blockLen-5] != '=' {
		logger.Debugf("reason=crc_sigil_missing, blockLen=%d", blockLen)
		return decodeError(data, rest)
	}
	radixData := body[:blockLen-5]
	crcData := body[blockLen-4:]

	var expectedBytes [3]byte
	n, err := base64.StdEncoding.Decode(expectedBytes[:], crcData)
	if n != 3 || err != nil {
		logger.Debugf("reason=crc_decode, n=%d, err=[%v]", n, err)
		return decodeError(data, rest)
	}
	p.CRC = uint32(expectedBytes[0])<<16 | uint32(expectedBytes[1])<<8 | uint32(expectedBytes[2])

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(radixData)))
	n, err = base64.StdEncoding.Decode(decoded, radixData)
	if err != nil {
		logger.Debugf("reason=body_decode, err=[%v]", err)
		return decodeError(data, rest)
	}
	p.Bytes = decoded[:n]

	crc := radix64.InitCRC()
	for _, b := range p.Bytes {
		crc = radix64.UpdateCRC(crc, b)
	}
	if p.CRC != crc {
		logger.Debugf("reason=crc_mismatch, expected=%d, actual=%d", p.CRC, crc)
		return decodeError(data, rest)
	}

	// the -1 accounts for pemEnd possibly matching without its leading
	// newline, when the block had no header lines.
	_, rest = getLine(rest[endIndex+len(pemEnd)-1:])
	return p, rest
}

func decodeError(data, rest []byte) (*Block, []byte) {
	// A likely-looking but ultimately invalid block was rejected. The
	// preamble line (and anything that could pass as a header line) has
	// been consumed, but a valid preamble line is never itself a valid
	// header line, so we can always find the next real block, if any, by
	// recursing on rest.
	p, rest := Decode(rest)
	if p == nil {
		rest = data
	}
	return p, rest
}

// Encode renders body as an armored envelope of the given variant. It is
// the whole-buffer counterpart to Writer, for callers that already hold the
// body fully in memory.
func Encode(what What, headers map[string]string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	ctx := &Context{What: what, HdrLines: headers}
	w, err := NewWriter(ctx, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage reads one armored envelope fully into memory via the
// streaming Reader, returning its decoded bytes, detected type and
// informational headers. Unlike Decode, it also handles cleartext-signature
// blocks (bytes is then the synthesized ONEPASS-SIG+PLAINTEXT packet
// stream) and bypassed binary input (bytes is then the input unchanged).
func DecodeMessage(r io.Reader) (decoded []byte, typ string, headers map[string]string, err error) {
	ctx := NewContext(WhatMessage)
	ar, err := NewReader(ctx, r)
	if err != nil {
		return nil, "", nil, err
	}
	decoded, err = io.ReadAll(ar)
	if err != nil {
		return nil, "", nil, err
	}
	return decoded, ar.Type(), ar.Headers(), nil
}
