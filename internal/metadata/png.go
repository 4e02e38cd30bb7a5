package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// maxTextChunk caps a single text chunk. Workflow graphs can be large but
// anything past this is treated as corrupt.
const maxTextChunk = 32 << 20

// ErrNotPNG is returned by ReadPNGText when the stream lacks a PNG signature.
var ErrNotPNG = errors.New("not a PNG stream")

// ReadPNGText returns the keyword/text pairs of every tEXt, zTXt and iTXt
// chunk in a PNG stream. When a keyword repeats, the first occurrence wins.
func ReadPNGText(r io.Reader) (map[string]string, error) {
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, ErrNotPNG
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, ErrNotPNG
	}

	text := make(map[string]string)
	var header [8]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return text, nil
			}
			return text, fmt.Errorf("chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(header[:4])
		kind := string(header[4:8])

		switch kind {
		case "tEXt", "zTXt", "iTXt":
			if length > maxTextChunk {
				return text, fmt.Errorf("%s chunk of %d bytes exceeds limit", kind, length)
			}
			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				return text, fmt.Errorf("%s chunk: %w", kind, err)
			}
			key, value, err := decodeTextChunk(kind, data)
			if err != nil {
				return text, err
			}
			if _, dup := text[key]; !dup {
				text[key] = value
			}
			if _, err := io.CopyN(io.Discard, r, 4); err != nil {
				return text, err
			}
		case "IEND":
			return text, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
				return text, fmt.Errorf("%s chunk: %w", kind, err)
			}
		}
	}
}

func decodeTextChunk(kind string, data []byte) (string, string, error) {
	key, rest, ok := bytes.Cut(data, []byte{0})
	if !ok {
		return "", "", fmt.Errorf("%s chunk missing keyword separator", kind)
	}
	keyword, err := latin1(key)
	if err != nil {
		return "", "", err
	}

	switch kind {
	case "tEXt":
		value, err := latin1(rest)
		return keyword, value, err

	case "zTXt":
		if len(rest) < 1 || rest[0] != 0 {
			return "", "", fmt.Errorf("zTXt %q: unknown compression method", keyword)
		}
		raw, err := inflate(rest[1:])
		if err != nil {
			return "", "", fmt.Errorf("zTXt %q: %w", keyword, err)
		}
		value, err := latin1(raw)
		return keyword, value, err

	default: // iTXt
		if len(rest) < 2 {
			return "", "", fmt.Errorf("iTXt %q: truncated", keyword)
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// language tag, then translated keyword
		for i := 0; i < 2; i++ {
			_, after, ok := bytes.Cut(rest, []byte{0})
			if !ok {
				return "", "", fmt.Errorf("iTXt %q: truncated", keyword)
			}
			rest = after
		}
		if compressed {
			raw, err := inflate(rest)
			if err != nil {
				return "", "", fmt.Errorf("iTXt %q: %w", keyword, err)
			}
			rest = raw
		}
		return keyword, string(rest), nil
	}
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxTextChunk))
}

func latin1(b []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
