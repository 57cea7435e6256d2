// Package base62 encodes unsigned integers as compact base-62 strings.
//
// The alphabet is 0-9, A-Z, a-z in that order. Unlike base64 it contains
// no characters that need escaping in URLs, which makes it suitable for
// short codes and compact identifiers.
package base62

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = uint64(62)

// Encode converts n to its minimal-length base-62 representation.
// Encode(0) returns "0", the first symbol of the alphabet.
func Encode(n uint64) string {
	if n == 0 {
		return string(alphabet[0])
	}

	// 11 digits cover the full uint64 range.
	var buf [11]byte
	pos := len(buf)

	for n > 0 {
		pos--
		buf[pos] = alphabet[n%base]
		n /= base
	}

	return string(buf[pos:])
}
