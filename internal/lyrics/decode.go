package lyrics

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const fallbackEncoding = "latin1"

var defaultEncodings = []string{"utf-8", "gbk", "big5", fallbackEncoding}

// Decoder converts raw bytes to text, reporting ok=false when the bytes are
// not valid in its encoding.
type Decoder struct {
	Name   string
	decode func([]byte) (string, bool)
}

// Decode runs the decoder.
func (d Decoder) Decode(data []byte) (string, bool) {
	return d.decode(data)
}

// DecoderChain tries decoders in order; the first success wins. A chain
// built by NewDecoderChain always ends in latin1, which accepts every byte
// sequence, so Decode is total.
type DecoderChain struct {
	decoders []Decoder
}

// NewDecoderChain resolves encoding names (utf-8, gbk, big5, latin1, or any
// WHATWG label such as shift_jis or euc-kr) into a chain.
func NewDecoderChain(names []string) (DecoderChain, error) {
	var chain DecoderChain
	hasFallback := false
	for _, name := range names {
		dec, err := lookupDecoder(name)
		if err != nil {
			return DecoderChain{}, err
		}
		if dec.Name == fallbackEncoding {
			hasFallback = true
		}
		chain.decoders = append(chain.decoders, dec)
	}
	if !hasFallback {
		latin1, _ := lookupDecoder(fallbackEncoding)
		chain.decoders = append(chain.decoders, latin1)
	}
	return chain, nil
}

// Names lists the decoders in the order they are tried.
func (c DecoderChain) Names() []string {
	out := make([]string, len(c.decoders))
	for i, d := range c.decoders {
		out[i] = d.Name
	}
	return out
}

// Decode returns the text and the name of the decoder that produced it. A
// byte-order mark short-circuits the chain.
func (c DecoderChain) Decode(data []byte) (string, string) {
	if text, name, ok := decodeBOM(data); ok {
		return text, name
	}
	for _, d := range c.decoders {
		if text, ok := d.Decode(data); ok {
			return text, d.Name
		}
	}
	// Only reachable for a hand-built empty chain.
	return string(data), "raw"
}

func lookupDecoder(name string) (Decoder, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "utf-8", "utf8":
		return Decoder{Name: "utf-8", decode: decodeUTF8}, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return Decoder{Name: fallbackEncoding, decode: byteDecoder(charmap.ISO8859_1)}, nil
	case "gbk", "cp936":
		return Decoder{Name: "gbk", decode: strictDecoder(simplifiedchinese.GBK)}, nil
	case "gb18030":
		return Decoder{Name: "gb18030", decode: strictDecoder(simplifiedchinese.GB18030)}, nil
	case "big5", "cp950":
		return Decoder{Name: "big5", decode: strictDecoder(traditionalchinese.Big5)}, nil
	}
	enc, err := htmlindex.Get(key)
	if err != nil {
		return Decoder{}, fmt.Errorf("lyrics encoding %q: %w", name, err)
	}
	return Decoder{Name: key, decode: strictDecoder(enc)}, nil
}

func decodeUTF8(data []byte) (string, bool) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// strictDecoder treats a replacement character in the output as a failed
// decode; x/text decoders substitute U+FFFD instead of returning an error.
func strictDecoder(enc encoding.Encoding) func([]byte) (string, bool) {
	return func(data []byte) (string, bool) {
		text, err := decodeWith(enc, data)
		if err != nil || strings.ContainsRune(text, utf8.RuneError) {
			return "", false
		}
		return text, true
	}
}

func byteDecoder(enc encoding.Encoding) func([]byte) (string, bool) {
	return func(data []byte) (string, bool) {
		text, err := decodeWith(enc, data)
		if err != nil {
			return "", false
		}
		return text, true
	}
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	reader := transform.NewReader(bytes.NewReader(data), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func decodeBOM(data []byte) (string, string, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		text, ok := decodeUTF8(data)
		return text, "utf-8", ok
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		text, err := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
		return text, "utf-16le", err == nil
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		text, err := decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data)
		return text, "utf-16be", err == nil
	}
	return "", "", false
}
