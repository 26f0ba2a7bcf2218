package subtitle

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode turns a fetched subtitle body into UTF-8 text. The charset comes
// from a BOM, the Content-Type parameter or content sniffing. exact is
// false when the charset was guessed; sniffing and the final fallback both
// land on Windows-1252, the usual encoding of legacy SRT files.
func Decode(body []byte, contentType string) (text string, exact bool) {
	if bytes.HasPrefix(body, bomUTF8) {
		body = body[len(bomUTF8):]
	}

	utf16 := bytes.HasPrefix(body, bomUTF16LE) || bytes.HasPrefix(body, bomUTF16BE)
	if !utf16 && utf8.Valid(body) {
		return string(body), true
	}

	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name != "utf-8" {
		if decoded, err := enc.NewDecoder().Bytes(body); err == nil && utf8.Valid(decoded) {
			return string(bytes.TrimPrefix(decoded, bomUTF8)), certain
		}
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(body)
	if err != nil {
		return string(bytes.ToValidUTF8(body, []byte("\uFFFD"))), false
	}
	return string(decoded), false
}
