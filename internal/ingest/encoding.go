package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeContent converts raw file bytes to UTF-8 text according to the
// configured encoding name.
func decodeContent(data []byte, encodingName string) (string, error) {
	var enc encoding.Encoding

	switch strings.ToLower(encodingName) {
	case "utf-8", "utf-8-sig", "":
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	case "latin-1":
		enc = charmap.ISO8859_1
	case "windows-1252":
		enc = charmap.Windows1252
	case "utf-16le":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16be":
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	default:
		return "", fmt.Errorf("unsupported encoding %q", encodingName)
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", encodingName, err)
	}
	return string(decoded), nil
}
