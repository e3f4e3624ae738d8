package dispatch

import (
	"hash"

	"github.com/go-phorce/pgparmor/metrics"
	"github.com/go-phorce/pgparmor/xpki/packet"
	"github.com/juju/errors"
)

// procTree dispatches a finished packet group: it is either a key listing,
// or a signature chain (one-pass or detached) whose
// SIGNATURE packets get verified against the hash(es) collected while the
// group's PLAINTEXT packet streamed through.
func (c *Context) procTree(group *packet.KBNode, root groupRoot) error {
	metrics.IncrCounter([]string{"dispatch", "proc_tree", "count"}, 1)

	switch root {
	case rootKey:
		// Key root: listing only, no verification to perform.
		return nil
	case rootOnePassSig, rootDetachedSig:
		return c.verifyGroup(group)
	default:
		return nil
	}
}

// verifyGroup acquires (or reuses) the hash set for group's signatures and
// verifies each SIGNATURE packet found in it.
func (c *Context) verifyGroup(group *packet.KBNode) error {
	hashes := c.hashes
	if hashes == nil {
		// No in-band PLAINTEXT was seen: acquire the signed data from
		// the declared SignedData (ModeSigsOnly detached case). No other
		// source is consulted; without SignedData the hashes cover no data.
		var err error
		hashes, err = c.hashDetachedData(group)
		if err != nil {
			return err
		}
	}

	var firstErr error
	packet.Each(group, func(p *packet.Packet) {
		if p.Tag != packet.TagSignature {
			return
		}
		if err := c.verifySignature(p, hashes); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// hashDetachedData builds the hash set declared by the group's ONEPASS-SIG
// chain (or, for a lone detached SIGNATURE, the single signature's digest
// algorithm), then hashes whatever detached data SignedData names.
func (c *Context) hashDetachedData(group *packet.KBNode) (map[byte]hash.Hash, error) {
	hashes := map[byte]hash.Hash{}
	addAlgo := func(algoID byte, textMode bool) {
		if _, ok := hashes[algoID]; ok {
			return
		}
		h, err := c.Handlers.NewHash(algoID, textMode)
		if err != nil {
			logger.Debugf("api=hashDetachedData, reason=new_hash, algo=%d, err=[%v]", algoID, err)
			return
		}
		hashes[algoID] = h
	}

	packet.Each(group, func(p *packet.Packet) {
		switch p.Tag {
		case packet.TagOnePassSig:
			if info, ok := packet.ParseOnePassSig(p.Body); ok {
				addAlgo(info.HashAlgo, info.Class == packet.SigClassText)
			}
		case packet.TagSignature:
			if info, ok := packet.ParseSignature(p.Body); ok && !packet.IsKeySignatureClass(info.Class) {
				addAlgo(info.HashAlgo, info.Class == packet.SigClassText)
			}
		}
	})

	if c.SignedData != nil {
		buf := make([]byte, 32*1024)
		for {
			n, err := c.SignedData.Read(buf)
			for _, h := range hashes {
				h.Write(buf[:n])
			}
			if err != nil {
				break
			}
		}
	}
	return hashes, nil
}

// verifySignature dispatches one SIGNATURE packet by its class:
// binary/canonical-text classes verify against the
// plaintext hash; key/subkey certification and revocation classes
// delegate to the handlers' key-signature path (hashed is nil, since the
// backend hashes the key material itself); any other class is an error.
func (c *Context) verifySignature(sig *packet.Packet, hashes map[byte]hash.Hash) error {
	info, ok := packet.ParseSignature(sig.Body)
	if !ok {
		return errors.Trace(ErrSigClass)
	}

	switch {
	case info.Class == packet.SigClassBinary, info.Class == packet.SigClassText:
		h := hashes[info.HashAlgo]
		_, err := c.Handlers.VerifySignature(sig, info, h)
		return c.countBadSig(err)

	case packet.IsKeySignatureClass(info.Class):
		_, err := c.Handlers.VerifySignature(sig, info, nil)
		return c.countBadSig(err)

	default:
		return errors.Trace(ErrSigClass)
	}
}

func (c *Context) countBadSig(err error) error {
	if err != nil {
		metrics.IncrCounter([]string{"dispatch", "badsig", "count"}, 1)
		return errors.Annotate(err, "verify signature")
	}
	return nil
}
