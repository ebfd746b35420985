package triplet

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestGreyMasksIPv4(t *testing.T) {
	k := NewKeyer(24, 48, false)
	key, err := k.Grey("a@example.com", "b@example.org", "192.168.5.77")
	if err != nil {
		t.Fatalf("Grey: %v", err)
	}
	want := "a@example.com/b@example.org/192.168.5.0/24"
	if key != want {
		t.Errorf("Grey: got %q, want %q", key, want)
	}
}

func TestGreyMasksIPv6(t *testing.T) {
	k := NewKeyer(24, 48, false)
	key, err := k.Grey("a@example.com", "b@example.org", "2001:db8:aaaa:bbbb::1")
	if err != nil {
		t.Fatalf("Grey: %v", err)
	}
	if !strings.HasSuffix(key, "/2001:db8:aaaa::/48") {
		t.Errorf("Grey: got %q, want /48 subnet suffix", key)
	}
}

func TestSameSubnetSameKey(t *testing.T) {
	k := NewKeyer(24, 48, false)
	k1, err := k.Grey("a@x.com", "b@y.com", "10.1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := k.Grey("a@x.com", "b@y.com", "10.1.2.250")
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Errorf("retry from same /24 should hit the same key: %q vs %q", k1, k2)
	}
	k3, err := k.Grey("a@x.com", "b@y.com", "10.1.3.3")
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k3 {
		t.Error("addresses in different /24s should not collide")
	}
}

func TestAutoWLOmitsRecipient(t *testing.T) {
	k := NewKeyer(24, 48, false)
	key, err := k.AutoWL("a@example.com", "192.168.5.77")
	if err != nil {
		t.Fatalf("AutoWL: %v", err)
	}
	want := "a@example.com/192.168.5.0/24"
	if key != want {
		t.Errorf("AutoWL: got %q, want %q", key, want)
	}
}

func TestHashedKeys(t *testing.T) {
	plain := NewKeyer(24, 48, false)
	hashed := NewKeyer(24, 48, true)

	pk, err := plain.Grey("a@x.com", "b@y.com", "10.1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	hk, err := hashed.Grey("a@x.com", "b@y.com", "10.1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	if hk == pk {
		t.Error("hashed key should differ from plain key")
	}
	if len(hk) != 64 {
		t.Errorf("hashed key length: got %d, want 64 hex chars", len(hk))
	}
	if _, err := hex.DecodeString(hk); err != nil {
		t.Errorf("hashed key is not hex: %v", err)
	}
	if strings.Contains(hk, "10.1.2") {
		t.Error("hashed key leaks the client address")
	}

	// Deterministic: a retry must map to the same entry.
	hk2, err := hashed.Grey("a@x.com", "b@y.com", "10.1.2.99")
	if err != nil {
		t.Fatal(err)
	}
	if hk != hk2 {
		t.Error("same masked subnet should hash to the same key")
	}
}

func TestBadClientAddress(t *testing.T) {
	k := NewKeyer(24, 48, false)
	if _, err := k.Grey("a@x.com", "b@y.com", "not-an-ip"); err == nil {
		t.Fatal("expected error for unparsable client address")
	}
	if _, err := k.AutoWL("a@x.com", ""); err == nil {
		t.Fatal("expected error for empty client address")
	}
}
