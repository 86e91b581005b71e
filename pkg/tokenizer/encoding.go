package tokenizer

import (
	"bytes"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported on a decoded blob.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom"
	EncodingUTF16   = "utf-16"
	EncodingEUCKR   = "euc-kr"
)

// RepairThreshold is the ratio of replacement or mojibake runes above which
// the fallback encoding is tried.
const RepairThreshold = 0.01

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decoded is the text of a blob together with the encoding that produced it.
type Decoded struct {
	Text     string
	Encoding string
	BadRatio float64
	Repaired bool
}

// Decode turns raw bytes into text. A leading byte-order mark selects the
// encoding and is stripped. Otherwise UTF-8 is assumed, and when that yields
// too many broken runes the bytes are re-read as EUC-KR (CP949) and the
// cleaner result wins.
func Decode(blob []byte) Decoded {
	primaryName := EncodingUTF8
	switch {
	case bytes.HasPrefix(blob, bomUTF8):
		primaryName = EncodingUTF8BOM
	case bytes.HasPrefix(blob, bomUTF16LE), bytes.HasPrefix(blob, bomUTF16BE):
		primaryName = EncodingUTF16
	}

	primaryBytes, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), blob)
	if err != nil {
		primaryBytes = bytes.ToValidUTF8(bytes.TrimPrefix(blob, bomUTF8), []byte("\uFFFD"))
	}
	primary := Decoded{Text: string(primaryBytes), Encoding: primaryName}
	primary.BadRatio = badRatio(primary.Text)

	if primary.BadRatio <= RepairThreshold || primaryName == EncodingUTF16 {
		return primary
	}

	fallbackBytes, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), bytes.TrimPrefix(blob, bomUTF8))
	if err != nil {
		return primary
	}
	fallback := Decoded{Text: string(fallbackBytes), Encoding: EncodingEUCKR, Repaired: true}
	fallback.BadRatio = badRatio(fallback.Text)

	if fallback.BadRatio < primary.BadRatio {
		return fallback
	}
	return primary
}

// badRatio is the share of runes that are replacement characters or C1
// control codes, the usual residue of decoding bytes with the wrong charset.
func badRatio(s string) float64 {
	total, bad := 0, 0
	for _, r := range s {
		total++
		if r == '\uFFFD' || (r >= 0x80 && r <= 0x9F) {
			bad++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}
