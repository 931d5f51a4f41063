package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TEST: round trip for every data channel tag (Output, Error, Result,
// Debug) and a handful of payload sizes.
func TestMessageRoundTrip(t *testing.T) {
	channels := []ChannelTag{Output, Error, Result, Debug}
	payloads := [][]byte{
		nil,
		[]byte("short"),
		bytes.Repeat([]byte{0x42}, 4096),
	}

	for _, ch := range channels {
		for _, payload := range payloads {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			require.NoError(t, w.WriteMessage(ch, payload))

			r := NewReader(&buf)
			hdr, err := r.ReadHeader()
			require.NoError(t, err)
			assert.Equal(t, ch, hdr.Channel)
			assert.EqualValues(t, len(payload), hdr.Length)

			got, err := r.ReadPayload(hdr.Length)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		}
	}
}

// TEST: a length field of 0x00000100 must decode to 256, not be
// mistaken for a little-endian encoding of anything else.
func TestLengthIsBigEndian(t *testing.T) {
	raw := []byte{byte(Output), 0x00, 0x00, 0x01, 0x00}
	r := NewReader(bytes.NewReader(raw))

	hdr, err := r.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, uint32(256), hdr.Length)
}

// TEST: each of {o,e,r,d,I,L} round-trips through ChannelTag and back,
// and no other byte is accepted as a channel tag.
func TestChannelTagBijection(t *testing.T) {
	valid := []byte{'o', 'e', 'r', 'd', 'I', 'L'}
	for _, b := range valid {
		tag := ChannelTag(b)
		assert.True(t, tag.Valid())
		assert.Equal(t, string(b), tag.String())
	}

	for _, b := range []byte{'X', 'z', 0x00, 0xFF} {
		assert.False(t, ChannelTag(b).Valid())
	}
}

func TestPromptChannelsAreClientToServer(t *testing.T) {
	assert.True(t, Input.IsPrompt())
	assert.True(t, Line.IsPrompt())
	assert.False(t, Output.IsPrompt())
	assert.False(t, Result.IsPrompt())
}

// TEST: a short read anywhere — header, payload — surfaces ErrClosed,
// never a raw io.EOF/io.ErrUnexpectedEOF the caller has to know about.
func TestShortReadIsErrClosed(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.ReadHeader()
	assert.ErrorIs(t, err, ErrClosed)

	r = NewReader(bytes.NewReader([]byte{byte(Output), 0x00, 0x00}))
	_, err = r.ReadHeader()
	assert.ErrorIs(t, err, ErrClosed)

	r = NewReader(bytes.NewReader([]byte{byte(Output), 0x00, 0x00, 0x00, 0x05, 'a', 'b'}))
	hdr, err := r.ReadHeader()
	require.NoError(t, err)
	_, err = r.ReadPayload(hdr.Length)
	assert.ErrorIs(t, err, ErrClosed)
}

// TEST: an unrecognized tag byte is a protocol error, distinct from a
// short read.
func TestInvalidChannelByte(t *testing.T) {
	raw := []byte{'X', 0x00, 0x00, 0x00, 0x00}
	r := NewReader(bytes.NewReader(raw))
	_, err := r.ReadHeader()
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

// TEST: CopyPayload streams without requiring the whole payload to be
// buffered up front, so a 2 GiB frame (spec'd length 0x80000000) is
// accepted without a sign-extension bug turning it negative.
func TestCopyPayloadHandlesLengthsAboveInt31Max(t *testing.T) {
	const length = uint32(0x80000000) // 2 GiB, > 2^31-1

	zeros := io.LimitReader(zeroReader{}, int64(length))
	r := NewReader(zeros)

	var count countingWriter
	err := r.CopyPayload(&count, length)
	require.NoError(t, err)
	assert.EqualValues(t, length, count.n)
}

// TEST: the requested-size form used by Input/Line prompts parses as
// an unsigned 32-bit integer, not a payload.
func TestReadRequestSize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WritePromptHeader(Input, 128))

	r := NewReader(&buf)
	hdr, err := r.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, Input, hdr.Channel)
	assert.EqualValues(t, 128, hdr.Length)
}

// TEST: WriteRunCommand frames the literal command-encoder layout:
// "runcommand\n" + 4-byte big-endian length + argv block, no trailing
// NUL.
func TestWriteRunCommandFraming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	block := []byte("log\x00--rev\x00 1::")
	require.NoError(t, w.WriteRunCommand(block))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte("runcommand\n")))

	rest := out[len("runcommand\n"):]
	require.Len(t, rest, 4+len(block))

	length := uint32(rest[0])<<24 | uint32(rest[1])<<16 | uint32(rest[2])<<8 | uint32(rest[3])
	assert.EqualValues(t, len(block), length)
	assert.EqualValues(t, 14, length)
	assert.Equal(t, block, rest[4:])
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
