package align

import "github.com/tofinomau/mau-backend/pkg/ir"

// Interp is a small reference ALU for this package's tests: it applies the write modes
// (set, deposit-field, bitmasked-set, byte-rotate-merge) and a few ALU ops to plain
// container values. The tests exercise it directly, not against a solved ContainerAction.
type Interp struct {
	Width int
}

// ApplySet returns src, truncated to the container width: the whole-container move.
func (in Interp) ApplySet(src uint64) uint64 {
	return in.mask(src)
}

// ApplyDepositField writes newBits (already positioned at their final container bit
// positions) into dst wherever writeMask is set, preserving every other bit of dst.
func (in Interp) ApplyDepositField(dst, newBits uint64, writeMask uint64) uint64 {
	return in.mask((dst &^ writeMask) | (newBits & writeMask))
}

// ApplyBitmaskedSet is deposit-field with an arbitrary (possibly non-contiguous) mask;
// the mechanics are identical, only the mask shape differs.
func (in Interp) ApplyBitmaskedSet(dst, newBits, mask uint64) uint64 {
	return in.ApplyDepositField(dst, newBits, mask)
}

// ApplyByteRotateMerge merges two sources, each already rotated into position, using a
// per-byte select mask (bit i of byteSelect chooses source b over source a for byte i).
func (in Interp) ApplyByteRotateMerge(a, b uint64, byteSelect uint8) uint64 {
	var out uint64
	for byteIdx := 0; byteIdx*8 < in.Width; byteIdx++ {
		shift := uint(byteIdx * 8)
		var byteVal uint64
		if byteSelect&(1<<uint(byteIdx)) != 0 {
			byteVal = (b >> shift) & 0xff
		} else {
			byteVal = (a >> shift) & 0xff
		}
		out |= byteVal << shift
	}
	return in.mask(out)
}

// Rotate rotates v right by k bits within the container width (the convention
// right_shift uses: an input bit at position p lands at position (p-k) mod width).
func (in Interp) Rotate(v uint64, k int) uint64 {
	w := uint(in.Width)
	k = ((k % in.Width) + in.Width) % in.Width
	if k == 0 {
		return in.mask(v)
	}
	body := in.mask(v)
	return in.mask((body >> uint(k)) | (body << (w - uint(k))))
}

// Exec runs one ALU op on two source values, for checking arithmetic results rather
// than just write-mode mechanics.
func (in Interp) Exec(op ir.Opcode, s1, s2 uint64) uint64 {
	switch op {
	case ir.OpSet:
		return in.mask(s1)
	case ir.OpAdd, ir.OpAddC:
		return in.mask(s1 + s2)
	case ir.OpSub, ir.OpSubC:
		return in.mask(s1 - s2)
	case ir.OpAnd:
		return in.mask(s1 & s2)
	case ir.OpOr:
		return in.mask(s1 | s2)
	case ir.OpXor:
		return in.mask(s1 ^ s2)
	case ir.OpXnor:
		return in.mask(^(s1 ^ s2))
	case ir.OpNand:
		return in.mask(^(s1 & s2))
	case ir.OpNor:
		return in.mask(^(s1 | s2))
	case ir.OpAndCA:
		return in.mask(s1 &^ s2)
	case ir.OpAndCB:
		return in.mask(s2 &^ s1)
	case ir.OpShl:
		return in.mask(s1 << uint(s2))
	case ir.OpShrU:
		return in.mask(s1 >> uint(s2))
	case ir.OpMinU:
		if s1 < s2 {
			return in.mask(s1)
		}
		return in.mask(s2)
	case ir.OpMaxU:
		if s1 > s2 {
			return in.mask(s1)
		}
		return in.mask(s2)
	default:
		return in.mask(s1)
	}
}

func (in Interp) mask(v uint64) uint64 {
	if in.Width >= 64 {
		return v
	}
	return v & ((uint64(1) << uint(in.Width)) - 1)
}
