// Package dispatch implements the packet stream dispatcher: it consumes a
// parsed OpenPGP packet stream one packet at a time, groups
// related packets into a working tree, and hands finished groups to
// Handlers for decryption, signature verification, compression inflation
// and literal-data sinking. It is unaware of armor; xpki/armor's Reader (or
// any other packet source) feeds it via Process.
package dispatch

import (
	"bytes"
	"hash"
	"io"

	"github.com/go-phorce/pgparmor/metrics"
	"github.com/go-phorce/pgparmor/xlog"
	"github.com/go-phorce/pgparmor/xpki/packet"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pgparmor/xpki", "dispatch")

// Mode selects which packet kinds a Context accepts.
type Mode int

const (
	// ModeDefault accepts all packet kinds and builds both key trees and
	// signature trees.
	ModeDefault Mode = iota
	// ModeSigsOnly rejects key-management packets and collects only
	// SIGNATURE, PLAINTEXT, COMPRESSED and ONEPASS-SIG.
	ModeSigsOnly
	// ModeEncryptOnly rejects PUBLIC-KEY, SECRET-KEY and USER-ID.
	ModeEncryptOnly
)

// maxCompressDepth bounds COMPRESSED packet recursion so a maliciously
// nested stream of compressed packets cannot exhaust the stack.
const maxCompressDepth = 8

type sessionKeyKind int

const (
	sessionNone sessionKeyKind = iota
	sessionPubkey
	sessionSymmetric
)

type groupRoot int

const (
	rootNone groupRoot = iota
	rootKey
	rootOnePassSig
	rootDetachedSig
)

// Context is the dispatcher's per-stream record: the current packet group,
// the pending DEK, the hash set fed by a streaming PLAINTEXT packet, mode
// flags and detached-signature side-inputs.
type Context struct {
	Handlers Handlers
	Mode     Mode

	// SignedData, when set, is the detached data to hash for an
	// ONEPASS-SIG/lone-SIGNATURE group in ModeSigsOnly, when the signed
	// data is detached rather than carried in-band.
	SignedData io.Reader
	// SigFilename names the detached-signature file this Context is
	// processing, used as the sigIndex key when a CLI run verifies many
	// files against one keyring.
	SigFilename string

	group          *packet.KBNode
	root           groupRoot
	sawPlaintext   bool
	hashes         map[byte]hash.Hash
	dek            []byte
	lastSessionKey sessionKeyKind
	compressDepth  int
	index          *sigIndex
}

// NewContext returns a Context ready to process packets in the given mode.
func NewContext(mode Mode, h Handlers) *Context {
	return &Context{Mode: mode, Handlers: h, index: newSigIndex()}
}

func newNestedContext(parent *Context) *Context {
	return &Context{
		Mode:          parent.Mode,
		Handlers:      parent.Handlers,
		SignedData:    parent.SignedData,
		SigFilename:   parent.SigFilename,
		compressDepth: parent.compressDepth,
		index:         parent.index,
	}
}

// modeRejects reports whether tag is disallowed in the Context's Mode.
func modeRejects(mode Mode, tag packet.Tag) bool {
	switch mode {
	case ModeSigsOnly:
		switch tag {
		case packet.TagPubKey, packet.TagSecKey, packet.TagUserID,
			packet.TagSymkeyEnc, packet.TagPubkeyEnc, packet.TagEncrypted, packet.TagEncryptedMD:
			return true
		}
	case ModeEncryptOnly:
		switch tag {
		case packet.TagPubKey, packet.TagSecKey, packet.TagUserID:
			return true
		}
	}
	return false
}

// Process dispatches one packet according to the grouping rules below.
// MARKER packets are silently ignored in every mode: they carry no
// structural meaning and are only ever emitted for backward compatibility.
func (c *Context) Process(pkt *packet.Packet) error {
	if pkt.Tag == packet.TagMarker {
		return nil
	}
	if modeRejects(c.Mode, pkt.Tag) {
		return errors.Annotatef(ErrUnexpectedPacket, "tag=%s, mode=%d", pkt.Tag, c.Mode)
	}

	switch pkt.Tag {
	case packet.TagPubkeyEnc, packet.TagSymkeyEnc, packet.TagEncrypted, packet.TagEncryptedMD:
		// A pending DEK may carry through to these; the case below consumes
		// or replaces it.
	default:
		// Any other packet intervening between a session-key packet and its
		// ENCRYPTED packet means the DEK was never consumed; scrub it.
		c.scrubDEK()
	}

	switch pkt.Tag {
	case packet.TagPubKey, packet.TagSecKey:
		if err := c.finalizeGroup(); err != nil {
			return err
		}
		metrics.IncrCounter([]string{"armor", "decode", "count"}, 1)
		c.group = packet.Append(nil, pkt)
		c.root = rootKey
		return nil

	case packet.TagPubSubkey, packet.TagSecSubkey, packet.TagUserID:
		c.group = packet.Append(c.group, pkt)
		return nil

	case packet.TagSignature:
		if c.group == nil {
			// A detached-signature-only file: the first packet is
			// SIGNATURE, its own group.
			c.root = rootDetachedSig
		}
		c.group = packet.Append(c.group, pkt)
		return nil

	case packet.TagOnePassSig:
		if c.group == nil {
			c.root = rootOnePassSig
			c.sawPlaintext = false
		}
		c.group = packet.Append(c.group, pkt)
		if c.SigFilename != "" {
			c.index.put(c.SigFilename, c.group)
		}
		return nil

	case packet.TagPubkeyEnc:
		dek, err := c.Handlers.SessionKey(pkt)
		if err != nil {
			return errors.Annotate(err, "public-key session key")
		}
		c.dek = dek
		c.lastSessionKey = sessionPubkey
		return nil

	case packet.TagSymkeyEnc:
		dek, err := c.Handlers.SessionKey(pkt)
		if err != nil {
			return errors.Annotate(err, "symmetric session key")
		}
		c.dek = dek
		c.lastSessionKey = sessionSymmetric
		return nil

	case packet.TagEncrypted, packet.TagEncryptedMD:
		return c.processEncrypted(pkt)

	case packet.TagCompressed:
		return c.processCompressed(pkt)

	case packet.TagPlaintext:
		return c.processPlaintext(pkt)

	case packet.TagComment:
		return nil

	default:
		return errors.Annotatef(ErrUnexpectedPacket, "tag=%s", pkt.Tag)
	}
}

// scrubDEK zeroes and drops any pending session-key DEK. Called whenever a
// packet other than the ENCRYPTED packet it was meant for arrives, so key
// material never lingers in memory longer than its immediate use.
func (c *Context) scrubDEK() {
	for i := range c.dek {
		c.dek[i] = 0
	}
	c.dek = nil
	c.lastSessionKey = sessionNone
}

// processEncrypted consumes and drops any pending DEK; an absent DEK means
// "old conventional encrypted data" and the handlers are asked to derive
// one from a passphrase instead.
func (c *Context) processEncrypted(pkt *packet.Packet) error {
	dek := c.dek
	c.dek = nil
	c.lastSessionKey = sessionNone
	r, err := c.Handlers.Decrypt(dek, bytes.NewReader(pkt.Body))
	if err != nil {
		return errors.Annotate(err, "decrypt")
	}
	nested := newNestedContext(c)
	for {
		p, err := c.Handlers.NextPacket(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Trace(err)
		}
		if err := nested.Process(p); err != nil {
			return err
		}
	}
	return nested.finalizeGroup()
}

// processCompressed inflates pkt and recursively drives a nested Context
// over the resulting packet stream, guarding recursion depth.
func (c *Context) processCompressed(pkt *packet.Packet) error {
	if c.compressDepth >= maxCompressDepth {
		return errors.Trace(ErrCompressionNesting)
	}
	r, err := c.Handlers.Inflate(bytes.NewReader(pkt.Body))
	if err != nil {
		return errors.Annotate(err, "inflate")
	}
	nested := newNestedContext(c)
	nested.compressDepth = c.compressDepth + 1
	for {
		p, err := c.Handlers.NextPacket(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Trace(err)
		}
		if err := nested.Process(p); err != nil {
			return err
		}
	}
	return nested.finalizeGroup()
}

// processPlaintext prepares the hash set declared by any preceding
// ONEPASS-SIG packets (defaulting to none if this is a detached-signature
// verification with no in-band one-pass chain), feeds the literal data to
// every active hash plus the literal-data sink, and appends the packet to
// the current group.
func (c *Context) processPlaintext(pkt *packet.Packet) error {
	if c.hashes == nil {
		c.hashes = map[byte]hash.Hash{}
		packet.Each(c.group, func(p *packet.Packet) {
			if p.Tag != packet.TagOnePassSig {
				return
			}
			info, ok := packet.ParseOnePassSig(p.Body)
			if !ok {
				return
			}
			if _, exists := c.hashes[info.HashAlgo]; exists {
				return
			}
			h, err := c.Handlers.NewHash(info.HashAlgo, info.Class == packet.SigClassText)
			if err != nil {
				logger.Debugf("api=processPlaintext, reason=new_hash, algo=%d, err=[%v]", info.HashAlgo, err)
				return
			}
			c.hashes[info.HashAlgo] = h
		})
	}
	for _, h := range c.hashes {
		h.Write(pkt.Body)
	}
	c.sawPlaintext = true
	if err := c.Handlers.Literal(pkt.Body); err != nil {
		return errors.Annotate(err, "literal sink")
	}
	c.group = packet.Append(c.group, pkt)
	return nil
}

// Finish finalizes whatever group is still open, for the packet stream's
// EOF. Call it exactly once after the last Process call.
func (c *Context) Finish() error {
	return c.finalizeGroup()
}

func (c *Context) finalizeGroup() error {
	if c.group == nil {
		return nil
	}
	group, root := c.group, c.root
	c.group, c.root, c.sawPlaintext = nil, rootNone, false
	err := c.procTree(group, root)
	c.hashes = nil
	return err
}
