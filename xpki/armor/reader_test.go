package armor_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/go-phorce/pgparmor/xpki/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_WriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	wctx := armor.NewContext(armor.WhatMessage)
	wctx.HdrLines = map[string]string{"Comment": "line one\nline two"}
	w, err := armor.NewWriter(wctx, &buf)
	require.NoError(t, err)

	payload := []byte("hello, armored world")
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rctx := armor.NewContext(armor.WhatMessage)
	r, err := armor.NewReader(rctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.False(t, r.Bypass())
	assert.Equal(t, "line one\\nline two", r.Headers()["Comment"])
	assert.Contains(t, buf.String(), "Version: "+armor.DefaultVersion)
}

func Test_ReaderBinaryBypass(t *testing.T) {
	ctx := armor.NewContext(armor.WhatMessage)
	data := []byte{0x99, 0x01, 0x02, 0x03}
	r, err := armor.NewReader(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, r.Bypass())

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func Test_WriterOnlyKeyblocksRejectsOtherKinds(t *testing.T) {
	ctx := armor.NewContext(armor.WhatSignature)
	ctx.OnlyKeyblocks = true
	_, err := armor.NewWriter(ctx, &bytes.Buffer{})
	require.Error(t, err)
}

func Test_ReaderTruncatesOverlongLines(t *testing.T) {
	junk := strings.Repeat("x", armor.MaxLineLen+10) + "\n"
	var buf bytes.Buffer
	buf.WriteString(junk)

	wctx := armor.NewContext(armor.WhatFile)
	w, err := armor.NewWriter(wctx, &buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rctx := armor.NewContext(armor.WhatFile)
	r, err := armor.NewReader(rctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	assert.Equal(t, 1, rctx.Truncated())
}

func Test_WriterEmptyBodyNoExtraBlankLine(t *testing.T) {
	var buf bytes.Buffer
	wctx := armor.NewContext(armor.WhatMessage)
	w, err := armor.NewWriter(wctx, &buf)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "=") {
			require.GreaterOrEqual(t, i, 2)
			assert.Equal(t, "", lines[i-1], "expected the blank separator line directly before the CRC line")
			assert.NotEqual(t, "", lines[i-2], "expected no extra blank line before the CRC line")
			return
		}
	}
	t.Fatal("no CRC line found in output")
}

func Test_ReaderTolerantOfUnknownHeadersOutsideCleartext(t *testing.T) {
	input := "-----BEGIN PGP MESSAGE-----\n" +
		"Unknown-Header: whatever\n" +
		"\n" +
		"deadbeef=\n" +
		"=AAAA\n" +
		"-----END PGP MESSAGE-----\n"

	ctx := armor.NewContext(armor.WhatMessage)
	r, err := armor.NewReader(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "whatever", r.Headers()["Unknown-Header"])
}

func Test_ReaderCRCMismatch(t *testing.T) {
	var buf bytes.Buffer
	wctx := armor.NewContext(armor.WhatMessage)
	w, err := armor.NewWriter(wctx, &buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	corrupted := strings.Replace(buf.String(), "\n=", "\n=AAAA\n=", 1)

	rctx := armor.NewContext(armor.WhatMessage)
	r, err := armor.NewReader(rctx, strings.NewReader(corrupted))
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	assert.Error(t, err)
}
