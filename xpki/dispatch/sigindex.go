package dispatch

import (
	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/go-phorce/pgparmor/xpki/packet"
)

// sigIndex tracks detached-signature groups (an ONEPASS-SIG or lone
// SIGNATURE root awaiting its signed file) keyed by sigfilename, so a CLI
// run verifying many detached signatures against one keyring does not
// linearly scan pending groups. Built on
// github.com/hashicorp/go-immutable-radix, the same radix-tree lookup the
// metrics package already uses for its prefix-filter tree.
type sigIndex struct {
	tree *iradix.Tree
}

func newSigIndex() *sigIndex {
	return &sigIndex{tree: iradix.New()}
}

func (s *sigIndex) put(filename string, group *packet.KBNode) {
	s.tree, _, _ = s.tree.Insert([]byte(filename), group)
}

func (s *sigIndex) get(filename string) (*packet.KBNode, bool) {
	v, ok := s.tree.Get([]byte(filename))
	if !ok {
		return nil, false
	}
	return v.(*packet.KBNode), true
}

func (s *sigIndex) delete(filename string) {
	s.tree, _, _ = s.tree.Delete([]byte(filename))
}

func (s *sigIndex) len() int {
	return s.tree.Len()
}
