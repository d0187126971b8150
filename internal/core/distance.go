package core

import (
	"encoding/hex"
	"math/big"
	"sort"
)

// RecordKeyHex renders a record key as a lowercase hex string, the form
// used in log lines and wire addresses throughout the node.
func RecordKeyHex(key RecordKey) string {
	return hex.EncodeToString(key)
}

// Distance returns the XOR distance between two addresses as a big.Int,
// computed over their canonical byte identity. Shorter identities are
// zero-padded on the left so peer and record addresses of differing
// lengths still compare consistently.
func (a NetworkAddress) Distance(b NetworkAddress) *big.Int {
	ab, bb := a.bytes(), b.bytes()
	n := len(ab)
	if len(bb) > n {
		n = len(bb)
	}
	diff := make([]byte, n)
	for i := 0; i < n; i++ {
		var x, y byte
		if off := n - len(ab); i >= off {
			x = ab[i-off]
		}
		if off := n - len(bb); i >= off {
			y = bb[i-off]
		}
		diff[i] = x ^ y
	}
	return new(big.Int).SetBytes(diff)
}

// SortByDistance orders addrs by ascending XOR distance to target. Ties are
// broken lexicographically on the raw byte identity so the ordering is
// total and deterministic across nodes observing the same set.
func SortByDistance(target NetworkAddress, addrs []NetworkAddress) {
	sort.Slice(addrs, func(i, j int) bool {
		di := target.Distance(addrs[i])
		dj := target.Distance(addrs[j])
		if c := di.Cmp(dj); c != 0 {
			return c < 0
		}
		return string(addrs[i].bytes()) < string(addrs[j].bytes())
	})
}

// ClosestTo returns up to n addresses from addrs, ordered by ascending XOR
// distance to target with a lexicographic tie-break. The input slice is
// copied; addrs itself is left untouched.
func ClosestTo(target NetworkAddress, addrs []NetworkAddress, n int) []NetworkAddress {
	cp := make([]NetworkAddress, len(addrs))
	copy(cp, addrs)
	SortByDistance(target, cp)
	if n >= 0 && len(cp) > n {
		cp = cp[:n]
	}
	return cp
}
