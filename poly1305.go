// Package poly1305 implements the Poly1305 one-time message
// authentication code, as specified in RFC 8439. Poly1305 computes a
// 16-byte authenticator tag from a 32-byte one-time key and a message
// of any length.
//
// A key must be used for a single message only: authenticating two
// messages under the same key allows an attacker to forge tags for
// further messages. Generating and transporting one-time keys is the
// caller's responsibility (in the ChaCha20-Poly1305 AEAD construction,
// for example, the key is derived from the cipher's first keystream
// block).
//
// The one-shot Sum and Verify functions cover the common case. The MAC
// type accepts a message incrementally, in chunks of any size, for
// callers that do not hold the whole message in memory; it also provides
// the zero-padded absorption used for AEAD associated data.
//
// All tag computations and comparisons are constant-time with regard to
// key and message contents.
package poly1305

import (
	"crypto/subtle"
	"strconv"
)

const (
	// KeySize is the Poly1305 key size in bytes.
	KeySize = 32

	// TagSize is the Poly1305 authenticator size in bytes.
	TagSize = 16

	// BlockSize is the Poly1305 block size in bytes. The accumulator
	// absorbs the message 16 bytes at a time.
	BlockSize = 16
)

// KeySizeError is returned when the key given to New, Reinit or Sum is
// not exactly KeySize bytes. Its value is the offending length.
type KeySizeError int

func (k KeySizeError) Error() string {
	return "poly1305: invalid key size " + strconv.Itoa(int(k))
}

// Sum computes the authenticator tag of msg under the given one-time
// key. The key must be KeySize bytes and must not be reused for another
// message.
func Sum(msg, key []byte) ([TagSize]byte, error) {
	mac, err := New(key)
	if err != nil {
		return [TagSize]byte{}, err
	}
	mac.Update(msg)
	return mac.Finish(), nil
}

// Verify recomputes the tag of msg under the given one-time key and
// compares it with tag in constant time. A tag or key of the wrong
// length yields false rather than an error, so that verification call
// sites have a single uniform branch.
func Verify(tag, msg, key []byte) bool {
	if len(tag) != TagSize {
		return false
	}
	want, err := Sum(msg, key)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want[:], tag) == 1
}
