// Command pgparmor drives the xpki/armor codec and the xpki/dispatch
// packet-stream dispatcher from the shell: armor, dearmor and verify
// OpenPGP-style messages. It uses a small command-table style rather than
// an HTTP-server-control framework, since there is no server, client,
// content type, or remote endpoint for such a framework to manage here —
// only local files.
package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/cloudflare/cfssl/log"
	"github.com/go-phorce/pgparmor/xpki/armor"
	"github.com/go-phorce/pgparmor/xpki/dispatch"
	"github.com/go-phorce/pgparmor/xpki/gpg"
	"github.com/go-phorce/pgparmor/xpki/packet"
	"github.com/juju/errors"
)

// Exit codes: BADARMOR aborts with 2, dispatch-layer errors with 3,
// anything else unexpected with 1, success with 0.
const (
	exitOK       = 0
	exitUnknown  = 1
	exitBadArmor = 2
	exitDispatch = 3
)

// command is one pgparmor subcommand.
type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{name: "armor", usage: "pgparmor armor [-type TYPE] [-comment TEXT] [-o OUT] [IN]", run: runArmor},
	{name: "dearmor", usage: "pgparmor dearmor [-o OUT] [IN]", run: runDearmor},
	{name: "verify", usage: "pgparmor verify -keyring FILE [-data FILE] SIGFILE", run: runVerify},
}

func main() {
	log.Level = log.LevelInfo
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitUnknown
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(args[1:]); err != nil {
			log.Errorf("%s: %v", c.name, err)
			return exitCode(err)
		}
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "pgparmor: unknown command %q\n", args[0])
	printUsage()
	return exitUnknown
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
}

// exitCode maps a returned error to a process exit code.
func exitCode(err error) int {
	cause := errors.Cause(err)
	msg := cause.Error()
	if containsBadArmor(msg) {
		return exitBadArmor
	}
	switch cause {
	case dispatch.ErrUnexpectedPacket, dispatch.ErrPubkeyAlgo, dispatch.ErrNoSecKey,
		dispatch.ErrBadSign, dispatch.ErrSigClass, dispatch.ErrCompressionNesting:
		return exitDispatch
	}
	return exitUnknown
}

func containsBadArmor(s string) bool {
	const marker = "BADARMOR"
	for i := 0; i+len(marker) <= len(s); i++ {
		if s[i:i+len(marker)] == marker {
			return true
		}
	}
	return false
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return ioutil.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return f, nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// whatFromFlag maps the -type flag's name to an armor.What, defaulting to
// WhatMessage.
func whatFromFlag(typ string) armor.What {
	switch typ {
	case "pubkey":
		return armor.WhatPublicKey
	case "privkey":
		return armor.WhatPrivateKey
	case "seckey":
		return armor.WhatSecretKey
	case "signature":
		return armor.WhatSignature
	case "signed":
		return armor.WhatSignedMessage
	case "file":
		return armor.WhatFile
	default:
		return armor.WhatMessage
	}
}

// newGPGContextFromKeyring loads an openpgp keyring and a dispatch Context
// wired for signature verification.
func newGPGContextFromKeyring(keyringPath string) (*dispatch.Context, error) {
	keyring, err := gpg.KeyRingFromFile(keyringPath)
	if err != nil {
		return nil, errors.Annotate(err, "load keyring")
	}
	handlers := dispatch.NewGPGHandlers(keyring)
	return dispatch.NewContext(dispatch.ModeSigsOnly, handlers), nil
}

// walkPackets feeds every packet framed in r to ctx.Process, then calls
// ctx.Finish.
func walkPackets(ctx *dispatch.Context, r io.Reader) error {
	for {
		pkt, err := packet.ReadPacket(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Annotate(err, "read packet")
		}
		if err := ctx.Process(pkt); err != nil {
			return err
		}
	}
	return ctx.Finish()
}
