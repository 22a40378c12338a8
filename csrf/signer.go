package csrf

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"
)

// The signed format is the one produced by itsdangerous' URLSafeTimedSerializer
// with its default signer: django-concat key derivation and HMAC-SHA1.
//
//	base64(json(value)) "." base64(timestamp) "." base64(mac)

const sep = "."

var b64 = base64.RawURLEncoding.Strict()

type signer struct {
	key []byte
}

func newSigner(secret, salt string) signer {
	h := sha1.New()
	h.Write([]byte(salt))
	h.Write([]byte("signer"))
	h.Write([]byte(secret))
	return signer{key: h.Sum(nil)}
}

func (s signer) mac(value string) string {
	m := hmac.New(sha1.New, s.key)
	m.Write([]byte(value))
	return b64.EncodeToString(m.Sum(nil))
}

func (s signer) dump(plain string, at time.Time) string {
	value := b64.EncodeToString(pyJSONString(plain)) + sep + b64.EncodeToString(encodeTimestamp(at.Unix()))
	return value + sep + s.mac(value)
}

// load checks the signature and returns the payload and the issue time. It
// does not look at the age.
func (s signer) load(signed string) (string, time.Time, bool) {
	i := strings.LastIndex(signed, sep)
	if i < 0 {
		return "", time.Time{}, false
	}
	value, mac := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(mac), []byte(s.mac(value))) {
		return "", time.Time{}, false
	}

	j := strings.LastIndex(value, sep)
	if j < 0 {
		return "", time.Time{}, false
	}
	payloadPart, tsPart := value[:j], value[j+1:]

	tsRaw, err := b64.DecodeString(tsPart)
	if err != nil || len(tsRaw) == 0 || len(tsRaw) > 8 {
		return "", time.Time{}, false
	}
	ts := decodeTimestamp(tsRaw)

	// a leading separator marks a zlib payload; plain tokens never need it
	if strings.HasPrefix(payloadPart, sep) {
		return "", time.Time{}, false
	}
	raw, err := b64.DecodeString(payloadPart)
	if err != nil {
		return "", time.Time{}, false
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err != nil {
		return "", time.Time{}, false
	}
	return plain, time.Unix(ts, 0), true
}

// encodeTimestamp writes ts big-endian without leading zero bytes.
func encodeTimestamp(ts int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts))
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func decodeTimestamp(b []byte) int64 {
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return int64(binary.BigEndian.Uint64(buf[:]))
}

// pyJSONString encodes s as Python's json.dumps does by default
// (ensure_ascii): printable ASCII verbatim, short escapes for the usual
// control characters, \uXXXX for everything else. Unlike encoding/json it
// leaves <, > and & alone and escapes non-ASCII.
func pyJSONString(s string) []byte {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s { // invalid UTF-8 decodes to U+FFFD
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				b.WriteRune(r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(&b, `\u%04x\u%04x`, hi, lo)
			default:
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		}
	}
	b.WriteByte('"')
	return []byte(b.String())
}
