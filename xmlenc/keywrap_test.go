package xmlenc

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"testing"
)

func TestAESKeyWrapRFC3394Vectors(t *testing.T) {
	// Official test vectors, RFC 3394 section 4.
	cases := []struct {
		name       string
		kek        string
		plaintext  string
		ciphertext string
	}{
		{
			"128-bit KEK, 128-bit key",
			"000102030405060708090A0B0C0D0E0F",
			"00112233445566778899AABBCCDDEEFF",
			"1FA68B0A8112B447AEF34BD8FB5A7B829D3E862371D2CFE5",
		},
		{
			"192-bit KEK, 128-bit key",
			"000102030405060708090A0B0C0D0E0F1011121314151617",
			"00112233445566778899AABBCCDDEEFF",
			"96778B25AE6CA435F92B5B97C050AED2468AB8A17AD84E5D",
		},
		{
			"256-bit KEK, 256-bit key",
			"000102030405060708090A0B0C0D0E0F101112131415161718191A1B1C1D1E1F",
			"00112233445566778899AABBCCDDEEFF000102030405060708090A0B0C0D0E0F",
			"28C9F404C4B810F4CBCCB35CFB87F8263F5786E2D80ED326CBC7F0E71A99F43BFB988B9B7A02DD21",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kek, _ := hex.DecodeString(tc.kek)
			plaintext, _ := hex.DecodeString(tc.plaintext)
			want, _ := hex.DecodeString(tc.ciphertext)

			got, err := AESKeyWrap(kek, plaintext)
			if err != nil {
				t.Fatalf("AESKeyWrap: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("ciphertext mismatch:\ngot:  %X\nwant: %X", got, want)
			}

			recovered, err := AESKeyUnwrap(kek, got)
			if err != nil {
				t.Fatalf("AESKeyUnwrap: %v", err)
			}
			if !bytes.Equal(recovered, plaintext) {
				t.Errorf("unwrap mismatch:\ngot:  %X\nwant: %X", recovered, plaintext)
			}
		})
	}
}

func TestAESKeyWrapRejectsBadInputSizes(t *testing.T) {
	if _, err := AESKeyWrap(make([]byte, 15), make([]byte, 16)); err != ErrInvalidKeySize {
		t.Errorf("expected ErrInvalidKeySize for a 15-byte KEK, got %v", err)
	}
	if _, err := AESKeyWrap(make([]byte, 16), make([]byte, 8)); err != ErrInvalidPlaintextSize {
		t.Errorf("expected ErrInvalidPlaintextSize for an 8-byte key, got %v", err)
	}
	if _, err := AESKeyUnwrap(make([]byte, 16), make([]byte, 16)); err != ErrInvalidCiphertextSize {
		t.Errorf("expected ErrInvalidCiphertextSize for a short ciphertext, got %v", err)
	}
}

func TestAESKeyUnwrapDetectsCorruption(t *testing.T) {
	kek := make([]byte, 16)
	plaintext := make([]byte, 16)
	rand.Read(kek)
	rand.Read(plaintext)

	ciphertext, err := AESKeyWrap(kek, plaintext)
	if err != nil {
		t.Fatalf("AESKeyWrap: %v", err)
	}
	ciphertext[0] ^= 0xFF

	if _, err := AESKeyUnwrap(kek, ciphertext); err != ErrIntegrityCheckFailed {
		t.Errorf("expected ErrIntegrityCheckFailed, got %v", err)
	}
}

func TestAESKeyWrapRoundTripAcrossSizes(t *testing.T) {
	for _, keySize := range []int{16, 24, 32} {
		for _, dataSize := range []int{16, 24, 40} {
			kek := make([]byte, keySize)
			plaintext := make([]byte, dataSize)
			rand.Read(kek)
			rand.Read(plaintext)

			ciphertext, err := AESKeyWrap(kek, plaintext)
			if err != nil {
				t.Fatalf("AESKeyWrap(%d, %d): %v", keySize, dataSize, err)
			}
			if len(ciphertext) != dataSize+8 {
				t.Errorf("ciphertext length: got %d, want %d", len(ciphertext), dataSize+8)
			}
			recovered, err := AESKeyUnwrap(kek, ciphertext)
			if err != nil {
				t.Fatalf("AESKeyUnwrap(%d, %d): %v", keySize, dataSize, err)
			}
			if !bytes.Equal(recovered, plaintext) {
				t.Errorf("round-trip mismatch for key=%d data=%d", keySize, dataSize)
			}
		}
	}
}
