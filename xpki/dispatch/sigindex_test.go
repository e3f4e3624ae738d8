package dispatch

import (
	"testing"

	"github.com/go-phorce/pgparmor/xpki/packet"
	"github.com/stretchr/testify/assert"
)

func Test_SigIndex_PutGetDelete(t *testing.T) {
	idx := newSigIndex()
	group := packet.Append(nil, &packet.Packet{Tag: packet.TagSignature})

	_, ok := idx.get("release.tar.gz")
	assert.False(t, ok)

	idx.put("release.tar.gz", group)
	assert.Equal(t, 1, idx.len())

	got, ok := idx.get("release.tar.gz")
	require := assert.New(t)
	require.True(ok)
	require.Equal(group, got)

	idx.delete("release.tar.gz")
	_, ok = idx.get("release.tar.gz")
	assert.False(t, ok)
	assert.Equal(t, 0, idx.len())
}
