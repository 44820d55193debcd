// Package codec implements the field encoding used on the Moustique wire protocol.
//
// Every protocol field is base64-encoded and then passed through ROT13 over ASCII
// letters. This is reversible obfuscation, not encryption: anyone who can read the
// traffic can decode it, credentials included.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrDecode is the sentinel wrapped by every DecodeError.
var ErrDecode = errors.New("malformed encoded text")

// DecodeError reports text that could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// Encode obfuscates s for transmission. Encode("") is "".
func Encode(s string) string {
	if s == "" {
		return ""
	}
	return rot13(base64.StdEncoding.EncodeToString([]byte(s)))
}

// Decode reverses Encode. It fails with a *DecodeError when the text is not
// valid base64 after rotation or the payload is not valid UTF-8.
func Decode(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(rot13(s))
	if err != nil {
		return "", &DecodeError{Reason: "invalid base64", Err: err}
	}
	if !utf8.Valid(raw) {
		return "", &DecodeError{Reason: "invalid utf-8"}
	}

	return string(raw), nil
}

// rot13 rotates ASCII letters by 13 places; it is its own inverse.
func rot13(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = 'a' + (c-'a'+13)%26
		case c >= 'A' && c <= 'Z':
			b[i] = 'A' + (c-'A'+13)%26
		}
	}
	return string(b)
}
