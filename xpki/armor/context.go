package armor

// What selects which of the seven armor variants a Writer emits, and which
// variants a Reader will accept when OnlyKeyblocks is set.
type What int

// Armor variants, in the fixed order of the BEGIN/END header table.
const (
	WhatMessage What = iota
	WhatPublicKey
	WhatSignature
	WhatSignedMessage
	WhatFile
	WhatPrivateKey
	WhatSecretKey
)

var headerTypes = [...]string{
	WhatMessage:       "MESSAGE",
	WhatPublicKey:     "PUBLIC KEY BLOCK",
	WhatSignature:     "SIGNATURE",
	WhatSignedMessage: "SIGNED MESSAGE",
	WhatFile:          "ARMORED FILE",
	WhatPrivateKey:    "PRIVATE KEY BLOCK",
	WhatSecretKey:     "SECRET KEY BLOCK",
}

// String returns the `<TYPE>` token used in the BEGIN/END lines, e.g.
// "PUBLIC KEY BLOCK".
func (w What) String() string {
	if int(w) < 0 || int(w) >= len(headerTypes) {
		return "UNKNOWN"
	}
	return headerTypes[w]
}

func whatFromHeader(typ string) (What, bool) {
	for i, t := range headerTypes {
		if t == typ {
			return What(i), true
		}
	}
	return 0, false
}

// onlyKeyblockWhats is the set of variants accepted when a Context's
// OnlyKeyblocks is set: public/private/secret key blocks only.
var onlyKeyblockWhats = map[What]bool{
	WhatPublicKey:  true,
	WhatPrivateKey: true,
	WhatSecretKey:  true,
}

// Hash-algorithm bits for the cleartext-signature "Hash:" header, tracked
// in the Context's `hashes` bitmask.
const (
	HashRMD160 = 1 << iota
	HashSHA1
	HashMD5
	HashTIGER
)

var hashNames = map[string]int{
	"RIPEMD160": HashRMD160,
	"SHA1":      HashSHA1,
	"MD5":       HashMD5,
	"TIGER":     HashTIGER,
}

// hashBits lists the hash bits in the canonical emission order required
// for synthetic one-pass-signature packets: RMD160, SHA1, MD5, TIGER.
var hashBits = []int{HashRMD160, HashSHA1, HashMD5, HashTIGER}

// MaxLineLen is the maximum accepted line length while searching for a
// BEGIN header; longer lines are counted as truncated and skipped rather
// than matched.
const MaxLineLen = 20000

// faked tracks the cleartext-signature synthetic-packet emission phase.
type fakedState int

const (
	fakedOff fakedState = iota
	fakedPrefixPending
	fakedStreaming
)

// Context is the mutable per-stream armor record. A Context is created
// once per logical armored stream and passed to either
// NewReader or NewWriter (never both at once).
type Context struct {
	// Configuration, set by the caller before use.
	What          What
	OnlyKeyblocks bool
	HdrLines      map[string]string

	// Runtime state, mutated as the stream is processed.
	inpChecked     bool
	inpBypass      bool
	inCleartext    bool
	notDashEscaped bool
	hashes         int
	faked          fakedState
	truncated      int
	status         bool
	anyData        bool
	empty          int
}

// NewContext returns a Context configured to emit/accept the given armor
// variant.
func NewContext(what What) *Context {
	return &Context{What: what}
}

// Truncated reports how many over-long lines were skipped while searching
// for a BEGIN header.
func (c *Context) Truncated() int { return c.truncated }

// AnyData reports whether any armored payload was seen on the read path.
func (c *Context) AnyData() bool { return c.anyData }
