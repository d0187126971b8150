package core

import "testing"

func TestEncodeDecodeKeyAnnouncementRoundTrip(t *testing.T) {
	keys := []RecordKey{{0x01, 0x02}, {0xff}, {0x00, 0x00, 0x10}}
	got := decodeKeyAnnouncement(encodeKeyAnnouncement(keys))
	if len(got) != len(keys) {
		t.Fatalf("expected %d keys, got %d", len(keys), len(got))
	}
	for i, k := range keys {
		if string(got[i]) != string(k) {
			t.Fatalf("key %d mismatch: got %x want %x", i, got[i], k)
		}
	}
}

func TestDecodeKeyAnnouncementEmpty(t *testing.T) {
	if got := decodeKeyAnnouncement(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestListenPortParsesTCP(t *testing.T) {
	port, err := listenPort("/ip4/0.0.0.0/tcp/4001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 4001 {
		t.Fatalf("expected port 4001, got %d", port)
	}
}

func TestListenPortNoPort(t *testing.T) {
	if _, err := listenPort("/ip4/0.0.0.0"); err == nil {
		t.Fatal("expected error for address with no port")
	}
}
