package field

import (
	"crypto/sha512"
	"encoding/binary"
	"math/big"
)

// =====================================================================
// Custom PRNG (based on SHA-512) for reproducible tests.

type prng struct {
	buf [64]byte
	ptr int
}

// Initialize the PRNG with an explicit seed.
func (p *prng) init(seed string) {
	hv := sha512.Sum512([]byte(seed))
	copy(p.buf[:], hv[:])
	p.ptr = 0
}

// Fill the provided slice with pseudorandom bytes from the PRNG.
func (p *prng) generate(d []byte) {
	n := len(d)
	for n > 0 {
		c := 32 - p.ptr
		if c == 0 {
			hv := sha512.Sum512(p.buf[:])
			copy(p.buf[:], hv[:])
			p.ptr = 0
			c = 32
		}
		if c > n {
			c = n
		}
		copy(d, p.buf[p.ptr:p.ptr+c])
		d = d[c:]
		n -= c
		p.ptr += c
	}
}

// Generate a random 128-bit value (two 64-bit limbs) from the PRNG.
func (p *prng) mk128(d *[2]uint64) {
	var bb [16]byte
	p.generate(bb[:])
	d[0] = binary.LittleEndian.Uint64(bb[0:])
	d[1] = binary.LittleEndian.Uint64(bb[8:])
}

// Generate a random clamped multiplier from the PRNG.
func (p *prng) mkClamped(d *[2]uint64) {
	var bb [16]byte
	p.generate(bb[:])
	Clamp(d, bb[:])
}

// Generate a random loosely reduced accumulator from the PRNG (top limb
// kept within the bound maintained by the block rounds).
func (p *prng) mkAcc(d *[3]uint64) {
	var bb [24]byte
	p.generate(bb[:])
	d[0] = binary.LittleEndian.Uint64(bb[0:])
	d[1] = binary.LittleEndian.Uint64(bb[8:])
	d[2] = binary.LittleEndian.Uint64(bb[16:]) % 6
}

// =====================================================================
// Conversions to math/big for reference computations.

// pBig returns the modulus 2^130 - 5 as a big integer.
func pBig() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 130)
	return p.Sub(p, big.NewInt(5))
}

// limbsToBig decodes base 2^64 little-endian limbs into a big integer.
func limbsToBig(limbs []uint64) *big.Int {
	z := new(big.Int)
	for i := len(limbs) - 1; i >= 0; i-- {
		z.Lsh(z, 64)
		z.Or(z, new(big.Int).SetUint64(limbs[i]))
	}
	return z
}

// bigToAcc encodes the low 192 bits of a big integer into accumulator
// limbs.
func bigToAcc(d *[3]uint64, z *big.Int) {
	var bb [24]byte
	z.FillBytes(bb[:])
	d[0] = binary.BigEndian.Uint64(bb[16:])
	d[1] = binary.BigEndian.Uint64(bb[8:])
	d[2] = binary.BigEndian.Uint64(bb[0:])
}

// blockToBig decodes a 16-byte block as a little-endian 128-bit integer.
func blockToBig(block []byte) *big.Int {
	var bb [16]byte
	for i := 0; i < 16; i++ {
		bb[i] = block[15-i]
	}
	return new(big.Int).SetBytes(bb[:])
}
