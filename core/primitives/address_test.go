package primitives

import "testing"

func TestP2PKHEncodeDecodeRoundTrip(t *testing.T) {
	h := BlakeHash([]byte("pubkey"))
	addr := NewP2PKH(h)

	encoded, err := addr.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if decoded.Type != AddressP2PKH || decoded.PubKeyHash != h {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestP2MPKHEncodeDecodeRoundTrip(t *testing.T) {
	hashes := []Hash{
		BlakeHash([]byte("k1")),
		BlakeHash([]byte("k2")),
		BlakeHash([]byte("k3")),
	}
	addr, err := NewP2MPKH(2, hashes)
	if err != nil {
		t.Fatalf("NewP2MPKH: %v", err)
	}
	encoded, err := addr.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if decoded.Threshold != 2 || len(decoded.PubKeyHashes) != 3 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	for i, h := range hashes {
		if decoded.PubKeyHashes[i] != h {
			t.Fatalf("hash %d mismatch: got %s want %s", i, decoded.PubKeyHashes[i], h)
		}
	}
}

func TestNewP2MPKHRejectsInvalidThreshold(t *testing.T) {
	hashes := []Hash{BlakeHash([]byte("k1"))}
	if _, err := NewP2MPKH(0, hashes); err == nil {
		t.Fatalf("expected error for zero threshold")
	}
	if _, err := NewP2MPKH(2, hashes); err == nil {
		t.Fatalf("expected error for threshold exceeding key count")
	}
}

func TestDecodeAddressRejectsCorruptedChecksum(t *testing.T) {
	addr := NewP2SH(BlakeHash([]byte("script")))
	encoded, err := addr.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupted := []byte(encoded)
	corrupted[len(corrupted)-1] ^= 0xFF
	if _, err := DecodeAddress(string(corrupted)); err == nil {
		t.Fatalf("expected checksum error on corrupted address")
	}
}

func TestAddressRawBytesRoundTrip(t *testing.T) {
	addr := NewP2SH(BlakeHash([]byte("redeem-script")))
	raw, err := addr.RawBytes()
	if err != nil {
		t.Fatalf("RawBytes: %v", err)
	}
	decoded, err := AddressFromRawBytes(raw)
	if err != nil {
		t.Fatalf("AddressFromRawBytes: %v", err)
	}
	if decoded.Type != AddressP2SH || decoded.ScriptHash != addr.ScriptHash {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestAddressFromRawBytesRejectsEmpty(t *testing.T) {
	if _, err := AddressFromRawBytes(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestGroupOfIsStableAndBounded(t *testing.T) {
	addr := NewP2C(BlakeHash([]byte("contract")))
	const groupCount = 4
	g1, err := addr.GroupOf(groupCount)
	if err != nil {
		t.Fatalf("GroupOf: %v", err)
	}
	g2, err := addr.GroupOf(groupCount)
	if err != nil {
		t.Fatalf("GroupOf: %v", err)
	}
	if g1 != g2 {
		t.Fatalf("GroupOf not stable: %d != %d", g1, g2)
	}
	if g1 >= groupCount {
		t.Fatalf("GroupOf out of bounds: %d >= %d", g1, groupCount)
	}
}
