package field

import (
	"encoding/binary"
	"math/bits"
)

// This file implements computations modulo the prime p = 2^130 - 5, as
// used by the Poly1305 authenticator. This implementation is portable
// (no assembly) but should be decently efficient on 64-bit
// architectures. It is safe (constant-time) as long as 64-bit operations
// (especially 64x64->128 multiplication, using math/bits.Mul64()) are
// constant-time, which should be true on most modern systems.

// =======================================================================

// Storage format: the accumulator is an array of three 64-bit unsigned
// integers, which encode the value in base 2^64 (little-endian order:
// first limb is least significant). The accumulator is kept loosely
// reduced: every function that writes it produces a value strictly
// lower than 2^131 (i.e. the top limb is at most 7, and in practice at
// most 5 after a block round), and every function that reads it asserts
// that bound on entry. A violation of the bound cannot come from message
// or key contents; it means a caller bug, and is reported with a panic
// rather than silently truncated.
//
// The multiplier r and the final secret s are arrays of two 64-bit limbs
// (128 bits) in the same order. r must have been produced by Clamp(),
// which clears 22 bits; this keeps every partial product of the block
// round within the widths used below.

// The prime modulus p = 2^130 - 5, in base 2^64 little-endian limbs.
const (
	p0 = 0xFFFFFFFFFFFFFFFB
	p1 = 0xFFFFFFFFFFFFFFFF
	p2 = 0x0000000000000003
)

// [RMask0, RMask1] is the clamping mask for the multiplier r, in base
// 2^64 little-endian limbs (RFC 8439, section 2.5.1). It clears the top
// four bits of bytes 3, 7, 11 and 15, and the bottom two bits of bytes
// 4, 8 and 12, of the first half of the key.
const (
	RMask0 = 0x0FFFFFFC0FFFFFFF
	RMask1 = 0x0FFFFFFC0FFFFFFC
)

// BlockSize is the size, in bytes, of one message block: the accumulator
// absorbs the message 128 bits at a time.
const BlockSize = 16

// =======================================================================
// Internal functions and helper types.

// uint128 holds a 128-bit intermediate value as two 64-bit limbs, for
// use with the bits.Mul64 and bits.Add64 intrinsics.
type uint128 struct {
	lo, hi uint64
}

func mul64(a, b uint64) uint128 {
	hi, lo := bits.Mul64(a, b)
	return uint128{lo, hi}
}

// add128 adds two 128-bit values. A carry out of the high limb means an
// operand exceeded the bound guaranteed by clamping, so it panics.
func add128(a, b uint128) uint128 {
	lo, c := bits.Add64(a.lo, b.lo, 0)
	hi, c := bits.Add64(a.hi, b.hi, c)
	if c != 0 {
		panic("poly1305: unexpected overflow")
	}
	return uint128{lo, hi}
}

func shiftRightBy2(a uint128) uint128 {
	a.lo = a.lo>>2 | (a.hi&3)<<62
	a.hi = a.hi >> 2
	return a
}

// select64 returns x if v == 1 and y if v == 0, in constant time.
func select64(v, x, y uint64) uint64 {
	return ^(v-1)&x | (v-1)&y
}

// checkLoose verifies the accumulator entry invariant (value < 2^131).
func checkLoose(h *[3]uint64) {
	if h[2] >= 8 {
		panic("poly1305: accumulator not loosely reduced")
	}
}

// checkClamped verifies that the multiplier went through Clamp().
func checkClamped(r *[2]uint64) {
	if r[0]&^uint64(RMask0) != 0 || r[1]&^uint64(RMask1) != 0 {
		panic("poly1305: multiplier not clamped")
	}
}

// blocks is the core block round. It folds each 16-byte chunk of msg
// into the accumulator:
//
//	h <- (h + m + hibit*2^128) * r  mod  2^130 - 5
//
// len(msg) must be a non-zero multiple of 16. hibit is 1 for full
// message blocks (the length marker bit of the specification) and 0 for
// the final short block, whose 0x01 padding byte already encodes the
// length.
func blocks(hh *[3]uint64, rr *[2]uint64, msg []byte, hibit uint64) {
	h0, h1, h2 := hh[0], hh[1], hh[2]
	r0, r1 := rr[0], rr[1]

	for len(msg) > 0 {
		var c uint64

		// h += m, with a chain of bits.Add64 intrinsics. The sum may
		// exceed p; the partial reduction below brings it back down.
		h0, c = bits.Add64(h0, binary.LittleEndian.Uint64(msg[0:8]), 0)
		h1, c = bits.Add64(h1, binary.LittleEndian.Uint64(msg[8:16]), c)
		h2 += c + hibit

		// Multiplication of the 3-limb h by the 2-limb r, schoolbook
		// style, with carry propagation deferred to a separate pass:
		//
		//                     h2    h1    h0  x
		//                           r1    r0  =
		//                    ----------------
		//                   h2r0  h1r0  h0r0
		//         +   h2r1  h1r1  h0r1
		//            ------------------------
		//              m3    m2    m1    m0     128-bit column sums
		//            ------------------------
		//              t3    t2    t1    t0     64-bit limbs
		h0r0 := mul64(h0, r0)
		h1r0 := mul64(h1, r0)
		h2r0 := mul64(h2, r0)
		h0r1 := mul64(h0, r1)
		h1r1 := mul64(h1, r1)
		h2r1 := mul64(h2, r1)

		// h2 is at most 7 on entry (at most 9 after the addition above)
		// and the top four bits of r0 and r1 are clear, so the h2
		// products fit in their low limbs and the result has no fifth
		// limb. A nonzero high limb here means the entry invariants
		// were violated.
		if h2r0.hi != 0 {
			panic("poly1305: unexpected overflow")
		}
		if h2r1.hi != 0 {
			panic("poly1305: unexpected overflow")
		}

		m0 := h0r0
		m1 := add128(h1r0, h0r1) // cannot overflow: top bits of r are clear
		m2 := add128(h2r0, h1r1)
		m3 := h2r1

		t0 := m0.lo
		t1, c := bits.Add64(m1.lo, m0.hi, 0)
		t2, c := bits.Add64(m2.lo, m1.hi, c)
		t3, _ := bits.Add64(m3.lo, m2.hi, c)

		// Partial reduction. The prime has the special shape 2^130 - 5,
		// so 2^130 = 5 mod p, and for any split of the product at the
		// 130-bit boundary into (c, n):
		//
		//	c * 2^130 + n  =  c * 5 + n  mod  p
		//
		// cc below holds the high part pre-shifted left by 2, i.e.
		// cc = c * 4; adding cc and then cc >> 2 adds c * 5 in total.
		h0, h1, h2 = t0, t1, t2&maskLow2Bits
		cc := uint128{t2 & maskNotLow2Bits, t3}

		h0, c = bits.Add64(h0, cc.lo, 0)
		h1, c = bits.Add64(h1, cc.hi, c)
		h2 += c

		cc = shiftRightBy2(cc)

		h0, c = bits.Add64(h0, cc.lo, 0)
		h1, c = bits.Add64(h1, cc.hi, c)
		h2 += c

		// The second fold leaves h2 at most 5, so the whole of h is at
		// most 6*2^128 - 1 < 2*(2^130 - 5), maintaining both the entry
		// invariant of the next round and the single conditional
		// subtraction performed by Finalize().

		msg = msg[BlockSize:]
	}

	hh[0], hh[1], hh[2] = h0, h1, h2
}

const (
	maskLow2Bits    uint64 = 0x0000000000000003
	maskNotLow2Bits uint64 = ^maskLow2Bits
)

// =======================================================================
// Exported API. Unless explicitly documented, all functions here are
// constant-time with regard to key and message contents (the panics
// above depend only on caller-controlled invariants, never on data).

// Clamp decodes the first 16 bytes of src as the little-endian
// multiplier r and clears the 22 bits of the clamping mask. src must be
// at least 16 bytes long.
func Clamp(r *[2]uint64, src []byte) {
	r[0] = binary.LittleEndian.Uint64(src[0:8]) & RMask0
	r[1] = binary.LittleEndian.Uint64(src[8:16]) & RMask1
}

// Blocks folds a run of complete 16-byte message blocks into the
// accumulator h, in order: h <- (h + m + 2^128) * r mod p for each
// block m. len(msg) must be a multiple of 16. The 2^128 term is the
// full-block length marker. It panics if h is not loosely reduced or r
// is not clamped.
func Blocks(h *[3]uint64, r *[2]uint64, msg []byte) {
	checkLoose(h)
	checkClamped(r)
	if len(msg)%BlockSize != 0 {
		panic("poly1305: partial block passed to Blocks")
	}
	blocks(h, r, msg, 1)
}

// LastBlock folds the final, already padded block into the accumulator:
// h <- (h + m) * r mod p, with no length marker bit since the 0x01
// padding byte written by the caller already encodes the message length.
// It panics if h is not loosely reduced or r is not clamped.
func LastBlock(h *[3]uint64, r *[2]uint64, block *[BlockSize]byte) {
	checkLoose(h)
	checkClamped(r)
	blocks(h, r, block[:], 0)
}

// Finalize completes the reduction of the accumulator modulo p, adds the
// secret s modulo 2^128, and serializes the low 128 bits of the result
// into tag in little-endian order. The wrap on the s addition is
// defined, expected behavior. h must be as left by the block rounds,
// below 2*(2^130 - 5); the single conditional subtraction below is not
// correct beyond that bound, so the assertion here is tighter than the
// block rounds' entry bound.
func Finalize(tag *[16]byte, h *[3]uint64, s *[2]uint64) {
	if h[2] >= 6 {
		panic("poly1305: accumulator not loosely reduced")
	}
	h0, h1, h2 := h[0], h[1], h[2]

	// h is below 2*(2^130 - 5), so a single conditional subtraction
	// completes the reduction: compute t = h - p and keep h if the
	// subtraction borrowed (h < p), t otherwise. The selection is done
	// with select64 rather than a branch so that the choice does not
	// leak through timing.
	t0, b := bits.Sub64(h0, p0, 0)
	t1, b := bits.Sub64(h1, p1, b)
	_, b = bits.Sub64(h2, p2, b)

	h0 = select64(b, h0, t0)
	h1 = select64(b, h1, t1)

	// tag = (h + s) mod 2^128
	h0, c := bits.Add64(h0, s[0], 0)
	h1, _ = bits.Add64(h1, s[1], c)

	binary.LittleEndian.PutUint64(tag[0:8], h0)
	binary.LittleEndian.PutUint64(tag[8:16], h1)
}
