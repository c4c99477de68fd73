package common

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText converts raw content in the named charset to UTF-8. An empty name
// means UTF-8. A leading byte order mark is stripped. Invalid UTF-8 is rejected
// rather than repaired, since offsets are computed on the decoded text.
func DecodeText(raw []byte, charset string) (string, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))

	enc, err := lookupEncoding(charset)
	if err != nil {
		return "", NewAppError(CodeInvalidArgument, fmt.Sprintf("unsupported charset %q", charset), ErrInvalidInput)
	}
	if enc == nil {
		raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(raw) {
			return "", NewAppError(CodeInvalidArgument, "content is not valid UTF-8", ErrInvalidInput)
		}
		return string(raw), nil
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), raw)
	if err != nil {
		return "", NewAppError(CodeInvalidArgument, fmt.Sprintf("content does not decode as %s", charset), err)
	}
	return string(out), nil
}

// lookupEncoding returns nil for UTF-8 and its ASCII subset.
func lookupEncoding(charset string) (encoding.Encoding, error) {
	switch charset {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return nil, nil
	case "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, err
	}
	return enc, nil
}
