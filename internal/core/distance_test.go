package core

import "testing"

func TestSortByDistanceOrdersAscending(t *testing.T) {
	target := NewRecordAddress(RecordKey{0x00})
	far := NewRecordAddress(RecordKey{0xff})
	near := NewRecordAddress(RecordKey{0x01})
	addrs := []NetworkAddress{far, near}

	SortByDistance(target, addrs)

	if !addrs[0].Equal(near) {
		t.Fatalf("expected nearer address first, got %v", addrs[0])
	}
	if !addrs[1].Equal(far) {
		t.Fatalf("expected farther address last, got %v", addrs[1])
	}
}

func TestSortByDistanceTieBreaksLexicographically(t *testing.T) {
	target := NewRecordAddress(RecordKey{0x00})
	a := NewRecordAddress(RecordKey{0x00, 0x01})
	b := NewRecordAddress(RecordKey{0x01})
	// With left zero-padding both a and b are at XOR distance 1 from the
	// target; the lexicographically lower byte string must sort first.
	addrs := []NetworkAddress{b, a}

	SortByDistance(target, addrs)

	if !addrs[0].Equal(a) {
		t.Fatalf("expected lexicographically smaller address first, got %v", addrs[0])
	}
}

func TestClosestToTruncates(t *testing.T) {
	target := NewRecordAddress(RecordKey{0x00})
	addrs := []NetworkAddress{
		NewRecordAddress(RecordKey{0x03}),
		NewRecordAddress(RecordKey{0x01}),
		NewRecordAddress(RecordKey{0x02}),
	}

	closest := ClosestTo(target, addrs, 2)

	if len(closest) != 2 {
		t.Fatalf("expected 2 results, got %d", len(closest))
	}
	if !closest[0].Equal(addrs[1]) {
		t.Fatalf("expected closest first, got %v", closest[0])
	}
}
