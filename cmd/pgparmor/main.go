package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/cloudflare/cfssl/log"
	"github.com/go-phorce/pgparmor/xpki/armor"
	"github.com/juju/errors"
)

// runArmor implements `pgparmor armor`: reads a binary packet stream and
// writes the armored envelope named by -type.
func runArmor(args []string) error {
	fs := flag.NewFlagSet("armor", flag.ContinueOnError)
	typ := fs.String("type", "message", "armor type: message, pubkey, privkey, seckey, signature, signed, file")
	comment := fs.String("comment", "", "Comment header")
	out := fs.String("o", "-", "output path ('-' for stdout)")
	if err := fs.Parse(args); err != nil {
		return errors.Trace(err)
	}

	in, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()

	body, err := ioutil.ReadAll(in)
	if err != nil {
		return errors.Annotate(err, "read input")
	}

	ctx := armor.NewContext(whatFromFlag(*typ))
	if *comment != "" {
		ctx.HdrLines = map[string]string{"Comment": *comment}
	}

	w, err := openOutput(*out)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := armor.WriteMessage(ctx, w, body); err != nil {
		return errors.Annotate(err, "write armor")
	}
	log.Debugf("armor: wrote %d bytes as %s", len(body), ctx.What)
	return nil
}

// runDearmor implements `pgparmor dearmor`: reads an armored envelope
// (including cleartext-signature messages, which are synthesized into a
// packet stream) and writes the decoded binary body.
func runDearmor(args []string) error {
	fs := flag.NewFlagSet("dearmor", flag.ContinueOnError)
	out := fs.String("o", "-", "output path ('-' for stdout)")
	if err := fs.Parse(args); err != nil {
		return errors.Trace(err)
	}

	in, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()

	decoded, typ, headers, err := armor.DecodeMessage(in)
	if err != nil {
		return errors.Annotate(err, "decode armor")
	}
	log.Infof("dearmor: type=%s headers=%d", typ, len(headers))

	w, err := openOutput(*out)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := w.Write(decoded); err != nil {
		return errors.Annotate(err, "write output")
	}
	return nil
}

// runVerify implements `pgparmor verify`: dearmors SIGFILE, walks its
// packet stream through a dispatch.Context in ModeSigsOnly wired to
// dispatch.GPGHandlers, and reports GOODSIG/BADSIG status outputs.
func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	keyringPath := fs.String("keyring", "", "armored public keyring file")
	dataPath := fs.String("data", "", "detached signed-data file (for detached signatures)")
	if err := fs.Parse(args); err != nil {
		return errors.Trace(err)
	}
	if *keyringPath == "" || fs.Arg(0) == "" {
		return errors.Errorf("verify: -keyring and SIGFILE are required")
	}

	ctx, err := newGPGContextFromKeyring(*keyringPath)
	if err != nil {
		return err
	}

	if *dataPath != "" {
		data, err := ioutil.ReadFile(*dataPath)
		if err != nil {
			return errors.Annotate(err, "read signed data")
		}
		ctx.SignedData = bytes.NewReader(data)
		ctx.SigFilename = *dataPath
	}

	sigFile, err := os.Open(fs.Arg(0))
	if err != nil {
		return errors.Annotate(err, "open signature file")
	}
	defer sigFile.Close()

	decoded, typ, _, err := armor.DecodeMessage(sigFile)
	if err != nil {
		return errors.Annotate(err, "decode armor")
	}
	log.Debugf("verify: decoded %d bytes, type=%s", len(decoded), typ)

	if err := walkPackets(ctx, bytes.NewReader(decoded)); err != nil {
		fmt.Fprintln(os.Stderr, "BADSIG")
		return errors.Annotate(err, "verify")
	}

	fmt.Fprintln(os.Stdout, "GOODSIG")
	return nil
}
