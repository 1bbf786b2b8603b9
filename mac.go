package poly1305

import (
	"encoding/binary"

	"github.com/blackshirt/poly1305/internal/field"
)

// This file implements the incremental MAC state machine: it buffers
// message bytes until a complete 16-byte block is available, feeds
// aligned runs of blocks straight to the block round without copying,
// and handles the padded final block and zeroization at finalization.

// MAC computes a Poly1305 authenticator over a message fed incrementally
// through Update and UpdatePadded. A MAC instance is bound to a single
// one-time key and produces a single tag: after Finish (or Reset) it is
// retired, and any further use short of Reinit with a fresh key is a
// caller bug reported with a panic. The zero value of MAC is likewise
// unusable; instances come from New, or from Reinit on an allocated
// structure. A MAC must not be used concurrently from multiple
// goroutines.
type MAC struct {
	// h is the running accumulator, interpreted modulo 2^130 - 5.
	h [3]uint64
	// r and s are the two halves of the one-time key: the clamped
	// polynomial multiplier and the final additive secret.
	r [2]uint64
	s [2]uint64

	// buf holds message bytes not yet folded into h; n is how many of
	// them are valid (always below BlockSize).
	buf [BlockSize]byte
	n   int

	// armed is set by Reinit once a one-time key has been loaded, and
	// is cleared again when the instance produces its tag or is reset.
	// Absorption and finalization panic while it is unset, so that
	// neither the zero value of MAC nor a retired instance can
	// silently compute a tag from all-zero key material (such a tag
	// would even verify against an all-zero reference).
	armed bool
}

// New returns a MAC armed with the given one-time key. It returns a
// KeySizeError if the key is not KeySize bytes.
func New(key []byte) (*MAC, error) {
	mac := new(MAC)
	if err := mac.Reinit(key); err != nil {
		return nil, err
	}
	return mac, nil
}

// Reinit zeroizes the instance and re-arms it with a fresh one-time key,
// so that an allocated MAC can be reused after Finish or Reset. The new
// key must never repeat a previously used one. On a KeySizeError the
// instance is left unchanged.
func (m *MAC) Reinit(key []byte) error {
	if len(key) != KeySize {
		return KeySizeError(len(key))
	}
	*m = MAC{}
	field.Clamp(&m.r, key[:16])
	m.s[0] = binary.LittleEndian.Uint64(key[16:24])
	m.s[1] = binary.LittleEndian.Uint64(key[24:32])
	m.armed = true
	return nil
}

// Update absorbs p into the authenticator state. The message may be
// split across calls at any byte boundaries; the final tag depends only
// on the concatenation of all updates. It panics if the instance has
// already produced its tag or has never been armed with a key.
func (m *MAC) Update(p []byte) {
	if !m.armed {
		panic("poly1305: update of uninitialized or finished MAC")
	}

	// Top up a previously buffered partial block first.
	if m.n > 0 {
		n := copy(m.buf[m.n:], p)
		m.n += n
		if m.n < BlockSize {
			return
		}
		p = p[n:]
		m.n = 0
		field.Blocks(&m.h, &m.r, m.buf[:])
	}

	// Feed aligned full blocks directly from the input, no copy.
	if n := len(p) &^ (BlockSize - 1); n > 0 {
		field.Blocks(&m.h, &m.r, p[:n])
		p = p[n:]
	}

	// Keep the tail for a later call or for Finish.
	if len(p) > 0 {
		m.n = copy(m.buf[:], p)
	}
}

// UpdatePadded absorbs p, then as many zero bytes as needed to bring the
// total absorbed length to a multiple of BlockSize. The padding bytes
// are processed as ordinary message content and do not terminate the
// message. This is the absorption rule for the associated data and
// ciphertext segments of the ChaCha20-Poly1305 AEAD construction
// (RFC 8439, section 2.8.1).
func (m *MAC) UpdatePadded(p []byte) {
	m.Update(p)
	if m.n > 0 {
		var zero [BlockSize]byte
		m.Update(zero[:BlockSize-m.n])
	}
}

// Finish folds any buffered partial block (padded with a 0x01 byte
// followed by zeros), completes the modular reduction, adds the secret
// half of the key, and returns the 16-byte tag. The instance is zeroized
// and retired; calling Finish twice, after Reset, or on a MAC that was
// never armed with a key panics.
func (m *MAC) Finish() [TagSize]byte {
	if !m.armed {
		panic("poly1305: finish of uninitialized or finished MAC")
	}

	if m.n > 0 {
		m.buf[m.n] = 1
		for i := m.n + 1; i < BlockSize; i++ {
			m.buf[i] = 0
		}
		field.LastBlock(&m.h, &m.r, &m.buf)
	}

	var tag [TagSize]byte
	field.Finalize(&tag, &m.h, &m.s)

	*m = MAC{} // also clears armed, retiring the instance
	return tag
}

// Reset zeroizes the instance and retires it without producing a tag,
// limiting how long key-derived material stays in memory when a
// computation is abandoned. A reset instance can be re-armed with
// Reinit.
func (m *MAC) Reset() {
	*m = MAC{}
}
