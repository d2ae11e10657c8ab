package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(TenorPrefix, raw)

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip changed payload: %s vs %s", decoded, addr)
	}
	if decoded.Prefix() != TenorPrefix {
		t.Fatalf("unexpected prefix: %s", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatal("expected decode failure")
	}
	// Valid bech32 with the wrong payload length.
	short := NewAddress(AssetPrefix, make([]byte, AddressLength)).String()
	if _, err := DecodeAddress(short[:len(short)-1]); err == nil {
		t.Fatal("expected decode failure for truncated string")
	}
}

func TestAddressEqualIgnoresPrefix(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[0] = 0xAB
	if !NewAddress(TenorPrefix, raw).Equal(NewAddress(AssetPrefix, raw)) {
		t.Fatal("payload-equal addresses must compare equal")
	}
}

func TestKeyDerivedAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.IsZero() {
		t.Fatal("derived address must not be zero")
	}
	if addr.Prefix() != TenorPrefix {
		t.Fatalf("unexpected prefix: %s", addr.Prefix())
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore key: %v", err)
	}
	if !restored.PubKey().Address().Equal(addr) {
		t.Fatal("restored key derives a different address")
	}
	if !bytes.Equal(restored.Bytes(), key.Bytes()) {
		t.Fatal("restored key bytes differ")
	}
}
