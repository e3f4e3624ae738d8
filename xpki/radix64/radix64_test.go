package radix64_test

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/go-phorce/pgparmor/xpki/radix64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeAll(t *testing.T, data []byte) (string, uint32) {
	var buf bytes.Buffer
	enc := radix64.NewEncoder(&buf)
	_, err := enc.Write(data)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	return buf.String(), enc.CRC()
}

func Test_EncodeEmpty(t *testing.T) {
	body, crc := encodeAll(t, nil)
	assert.Equal(t, "", body)
	assert.Equal(t, uint32(0xb704ce), crc)
}

func Test_EncodeSingleByte(t *testing.T) {
	body, _ := encodeAll(t, []byte{0x01})
	assert.Equal(t, "AQ==", body)
}

func Test_EncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x01},
		{0x01, 0x02},
		{0x01, 0x02, 0x03},
		bytes.Repeat([]byte{0xaa, 0x55, 0x00, 0xff}, 100),
	}
	for _, data := range cases {
		body, crc := encodeAll(t, data)

		r := bufio.NewReader(bytes.NewReader([]byte(body + "\n=" + string(radix64.EncodeQuad(crc)[:]) + "\n")))
		dec := radix64.NewDecoder(r)
		got, err := decodeAll(dec)
		require.NoError(t, err)
		require.NoError(t, dec.Err())
		assert.Equal(t, data, got)
	}
}

func Test_DecodeCRCMismatch(t *testing.T) {
	body, _ := encodeAll(t, []byte{0x01, 0x02, 0x03})
	r := bufio.NewReader(bytes.NewReader([]byte(body + "\n=AAAA\n")))
	dec := radix64.NewDecoder(r)
	_, err := decodeAll(dec)
	require.Error(t, err)
}

func Test_DecodeMalformedCRC(t *testing.T) {
	body, _ := encodeAll(t, []byte{0x01})
	r := bufio.NewReader(bytes.NewReader([]byte(body + "\n=AA\n")))
	dec := radix64.NewDecoder(r)
	_, err := decodeAll(dec)
	require.Error(t, err)
}

func Test_EncodeLineWrap(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 200)
	body, _ := encodeAll(t, data)
	lines := bytes.Split([]byte(body), []byte("\n"))
	for i, line := range lines[:len(lines)-1] {
		assert.LessOrEqualf(t, len(line), radix64.LineWrap, "line %d too long", i)
	}
}

func decodeAll(dec *radix64.Decoder) ([]byte, error) {
	var out []byte
	buf := make([]byte, 7)
	for {
		n, err := dec.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
	}
}
