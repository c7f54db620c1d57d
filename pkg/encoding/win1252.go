package encoding

import (
	"strings"

	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// The carrier's legacy ECS endpoint exchanges files in Windows-1252.
// Exports are encoded on the way out and polled shipment files are
// decoded on the way in.

// ToWin1252 converts a UTF-8 string to WIN1252 bytes.
// Characters outside the codepage are replaced by the encoder's
// substitute rune rather than failing the whole file.
func ToWin1252(s string) []byte {
	if s == "" {
		return nil
	}

	encoder := xencoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	encoded, err := encoder.Bytes([]byte(s))
	if err != nil {
		// Fallback: ship raw UTF-8 rather than losing the export
		return []byte(s)
	}

	return encoded
}

// ToUTF8 converts a slice of bytes (WIN1252) to a UTF-8 string
// If the data is already valid UTF-8, it returns it as is
func ToUTF8(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}

	return strings.TrimSpace(string(decoded))
}
