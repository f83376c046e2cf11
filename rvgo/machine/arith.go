package machine

import "github.com/holiman/uint256"

// 64-bit arithmetic helpers of the integer and M extension instructions.
// Division follows the RISC-V rules: no traps, division by zero gives all
// ones and the remainder the dividend, signed overflow gives the dividend
// and a zero remainder.

func u64ToU256(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}

func signExtend64To256(v uint64) uint256.Int {
	out := u64ToU256(v)
	if v&(1<<63) != 0 {
		// fill bits 64..255 with ones
		var hi uint256.Int
		hi.Lsh(new(uint256.Int).Not(&uint256.Int{}), 64)
		out.Or(&out, &hi)
	}
	return out
}

// mulHigh returns bits 127:64 of the product. The inputs are expected to be
// sign or zero extended to 256 bits, so truncation of the wrapped product
// leaves the high half intact.
func mulHigh(a, b uint256.Int) uint64 {
	var prod uint256.Int
	prod.Mul(&a, &b)
	prod.Rsh(&prod, 64)
	return prod.Uint64()
}

func mulh(a, b uint64) uint64 {
	return mulHigh(signExtend64To256(a), signExtend64To256(b))
}

func mulhsu(a, b uint64) uint64 {
	return mulHigh(signExtend64To256(a), u64ToU256(b))
}

func mulhu(a, b uint64) uint64 {
	return mulHigh(u64ToU256(a), u64ToU256(b))
}

func signExtend32(v uint64) uint64 {
	return uint64(int64(int32(uint32(v))))
}

func sdiv64(x, y uint64) uint64 {
	if y == 0 {
		return ^uint64(0)
	}
	if x == uint64(1<<63) && y == ^uint64(0) {
		return x
	}
	return uint64(int64(x) / int64(y))
}

func div64(x, y uint64) uint64 {
	if y == 0 {
		return ^uint64(0)
	}
	return x / y
}

func srem64(x, y uint64) uint64 {
	if y == 0 {
		return x
	}
	if x == uint64(1<<63) && y == ^uint64(0) {
		return 0
	}
	return uint64(int64(x) % int64(y))
}

func rem64(x, y uint64) uint64 {
	if y == 0 {
		return x
	}
	return x % y
}

func sdiv32(x, y uint64) uint64 {
	a, b := int32(uint32(x)), int32(uint32(y))
	switch {
	case b == 0:
		return ^uint64(0)
	case a == -1<<31 && b == -1:
		return signExtend32(x)
	}
	return uint64(int64(a / b))
}

func div32(x, y uint64) uint64 {
	a, b := uint32(x), uint32(y)
	if b == 0 {
		return ^uint64(0)
	}
	return signExtend32(uint64(a / b))
}

func srem32(x, y uint64) uint64 {
	a, b := int32(uint32(x)), int32(uint32(y))
	switch {
	case b == 0:
		return signExtend32(x)
	case a == -1<<31 && b == -1:
		return 0
	}
	return uint64(int64(a % b))
}

func rem32(x, y uint64) uint64 {
	a, b := uint32(x), uint32(y)
	if b == 0 {
		return signExtend32(x)
	}
	return signExtend32(uint64(a % b))
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
