package hgclient

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// codepageAliases maps the Windows-style "cpNNN" names Mercurial's
// handshake can report (and HGENCODING can be set to) onto the
// corresponding golang.org/x/text charmap.Charmap. Not every code page
// Windows defines has a charmap.Charmap counterpart; this covers the
// ones in common use as HGENCODING values.
var codepageAliases = map[string]encoding.Encoding{
	"cp037":   charmap.CodePage037,
	"cp437":   charmap.CodePage437,
	"cp850":   charmap.CodePage850,
	"cp852":   charmap.CodePage852,
	"cp855":   charmap.CodePage855,
	"cp858":   charmap.CodePage858,
	"cp862":   charmap.CodePage862,
	"cp866":   charmap.CodePage866,
	"cp1047":  charmap.CodePage1047,
	"cp1140":  charmap.CodePage1140,
	"cp1250":  charmap.Windows1250,
	"cp1251":  charmap.Windows1251,
	"cp1252":  charmap.Windows1252,
	"cp1253":  charmap.Windows1253,
	"cp1254":  charmap.Windows1254,
	"cp1255":  charmap.Windows1255,
	"cp1256":  charmap.Windows1256,
	"cp1257":  charmap.Windows1257,
	"cp1258":  charmap.Windows1258,
}

// resolveEncoding resolves a handshake-reported or caller-supplied
// encoding name to a concrete text encoding; "cpNNN" codepage aliases
// map to the corresponding code-page encoding. An empty name resolves
// to UTF-8, the protocol's fallback.
func resolveEncoding(name string) (encoding.Encoding, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return unicode.UTF8, nil
	}

	lower := strings.ToLower(trimmed)
	if enc, ok := codepageAliases[lower]; ok {
		return enc, nil
	}
	if strings.HasPrefix(lower, "cp") {
		if _, err := strconv.Atoi(lower[2:]); err == nil {
			return nil, newErrorf(HandshakeError, nil, "unsupported code page %q", name)
		}
	}

	enc, err := htmlindex.Get(trimmed)
	if err != nil {
		return nil, newErrorf(HandshakeError, err, "unrecognized encoding %q", name)
	}
	return enc, nil
}

// decodeBytes decodes raw bytes from the server using the session's
// negotiated encoding. Malformed byte sequences are passed through via
// the encoding's replacement-character behavior rather than erroring,
// matching typical Mercurial output handling of best-effort decoding.
func decodeBytes(enc encoding.Encoding, data []byte) (string, error) {
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// encodeString encodes argv text into the session's negotiated
// encoding for the command encoder.
func encodeString(enc encoding.Encoding, s string) ([]byte, error) {
	return enc.NewEncoder().Bytes([]byte(s))
}
