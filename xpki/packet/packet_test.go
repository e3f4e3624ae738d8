package packet_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-phorce/pgparmor/xpki/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DetectBinary(t *testing.T) {
	tag, ok := packet.DetectBinary(0x99) // old-format, tag 6 = PUBKEY
	require.True(t, ok)
	assert.Equal(t, packet.TagPubKey, tag)

	_, ok = packet.DetectBinary('-') // ASCII armor begins with '-'
	assert.False(t, ok)
}

func Test_LengthRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 191, 192, 8383, 8384, 70000} {
		var buf bytes.Buffer
		require.NoError(t, packet.WriteLength(&buf, n))
		got, partial, err := packet.ReadLength(&buf)
		require.NoError(t, err)
		assert.False(t, partial)
		assert.EqualValues(t, n, got)
	}
}

func Test_PartialWriterReader(t *testing.T) {
	var buf bytes.Buffer
	pw := packet.NewPartialWriter(&buf, 16)
	data := bytes.Repeat([]byte{0x42}, 50)
	_, err := pw.Write(data)
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	length, isPartial, err := packet.ReadLength(&buf)
	require.NoError(t, err)
	pr := packet.NewPartialReader(&buf, length, isPartial)
	got, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func Test_KBNodeChain(t *testing.T) {
	var head *packet.KBNode
	head = packet.Append(head, &packet.Packet{Tag: packet.TagPubKey})
	head = packet.Append(head, &packet.Packet{Tag: packet.TagUserID})
	head = packet.Append(head, &packet.Packet{Tag: packet.TagSignature})

	var tags []packet.Tag
	packet.Each(head, func(p *packet.Packet) { tags = append(tags, p.Tag) })
	assert.Equal(t, []packet.Tag{packet.TagPubKey, packet.TagUserID, packet.TagSignature}, tags)

	assert.NotNil(t, packet.Find(head, packet.TagSignature))
	assert.Nil(t, packet.Find(head, packet.TagEncrypted))
}
