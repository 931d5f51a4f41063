package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrClosed is returned when the server's end of the pipe is gone —
// a short read on the header, length, or payload.
var ErrClosed = errors.New("frame: server closed the connection")

// ErrInvalidChannel is returned when a header's tag byte is not one of
// the six defined channel tags.
var ErrInvalidChannel = errors.New("frame: invalid channel identifier")

// Header is a decoded 5-byte frame header: channel tag plus payload
// length. For Input/Line, Length is the server's requested byte count,
// not a payload length, and no further bytes follow the header.
type Header struct {
	Channel ChannelTag
	Length  uint32
}

// Reader reads frame headers and payloads from the command server's
// stdout. It does no buffering of its own beyond what the underlying
// io.Reader provides.
type Reader struct {
	r io.Reader
}

// NewReader wraps r for frame-at-a-time reading.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func wrapShortRead(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrClosed
	}
	return err
}

// ReadHeader reads the next 5-byte header. A short read of any kind
// (including a clean EOF before a single byte is read) is reported as
// ErrClosed; an unrecognized tag byte is reported as ErrInvalidChannel.
func (r *Reader) ReadHeader() (Header, error) {
	var buf [5]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return Header{}, wrapShortRead(err)
	}

	tag := ChannelTag(buf[0])
	if !tag.Valid() {
		return Header{}, ErrInvalidChannel
	}

	return Header{
		Channel: tag,
		Length:  binary.BigEndian.Uint32(buf[1:5]),
	}, nil
}

// ReadPayload reads exactly length bytes and returns them. length is a
// uint32 throughout so that values above 2^31-1 never go through a
// sign-extending conversion; Go's int is 64-bit on every platform this
// module targets, so the conversion to int for allocation is lossless.
func (r *Reader) ReadPayload(length uint32) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, wrapShortRead(err)
	}
	return buf, nil
}

// CopyPayload streams exactly length bytes from the connection into
// dst without materializing the whole payload in memory, so a sink
// that only counts or discards bytes (io.Discard, a bounded ring
// buffer) never pays for an adversarial or merely huge frame.
func (r *Reader) CopyPayload(dst io.Writer, length uint32) error {
	n, err := io.CopyN(dst, r.r, int64(length))
	if err != nil {
		return wrapShortRead(err)
	}
	if uint32(n) != length {
		return ErrClosed
	}
	return nil
}

// Writer writes runcommand frames and input-channel replies to the
// command server's stdin.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for frame writing.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// flusher is implemented by buffered writers; WriteRunCommand flushes
// after every write so the server sees the request promptly.
type flusher interface {
	Flush() error
}

func (fw *Writer) flush() error {
	if f, ok := fw.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// WriteRunCommand emits the literal bytes "runcommand\n", a 4-byte
// big-endian length, then block verbatim (the NUL-separated argv
// block, with no trailing NUL), and flushes.
func (fw *Writer) WriteRunCommand(block []byte) error {
	if _, err := fw.w.Write([]byte("runcommand\n")); err != nil {
		return err
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(block)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return err
	}

	if len(block) > 0 {
		if _, err := fw.w.Write(block); err != nil {
			return err
		}
	}

	return fw.flush()
}

// WriteInputReply writes data back on an Input/Line prompt: just the
// raw bytes, no additional framing, since the server already told the
// client how many bytes (or which line) it expects.
func (fw *Writer) WriteInputReply(data []byte) error {
	if len(data) > 0 {
		if _, err := fw.w.Write(data); err != nil {
			return err
		}
	}
	return fw.flush()
}

// WriteMessage writes a complete server-style data frame (header plus
// payload) for one of Output/Error/Result/Debug. Production code never
// calls this — the client does not emit data frames — but it is the
// encode half of the encode/decode round trip, and fixtures that
// simulate the server's frame stream in tests use it to build the
// stream a real hg serve --cmdserver pipe would have produced.
func (fw *Writer) WriteMessage(channel ChannelTag, payload []byte) error {
	var header [5]byte
	header[0] = byte(channel)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(payload)))

	if _, err := fw.w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := fw.w.Write(payload); err != nil {
			return err
		}
	}
	return fw.flush()
}

// WritePromptHeader writes a client-style Input/Line header fixture
// (tag byte + 4-byte requested size) for tests simulating the server.
func (fw *Writer) WritePromptHeader(channel ChannelTag, size uint32) error {
	var header [5]byte
	header[0] = byte(channel)
	binary.BigEndian.PutUint32(header[1:5], size)
	if _, err := fw.w.Write(header[:]); err != nil {
		return err
	}
	return fw.flush()
}
