package xmlsec

import (
	"crypto/rsa"
	"crypto/x509"
)

// KeyUsage narrows a KeyReq to keys intended for a particular operation.
type KeyUsage int

const (
	KeyUsageAny KeyUsage = iota
	KeyUsageSign
	KeyUsageVerify
	KeyUsageEncrypt
	KeyUsageDecrypt
)

// KeyReq describes what the caller of Read is looking for. The dispatch
// driver stops as soon as a handler has produced a key matching KeyReq
// (unless DONT_STOP_ON_KEY_FOUND is set).
type KeyReq struct {
	// KeyID restricts matches to keys produced by the descriptor with this
	// ID ("rsa-key-value", "x509-data", ...). Empty means any descriptor.
	KeyID string
	// KeyBitsize restricts matches to keys of this size. Zero means any size.
	KeyBitsize int
	Usage      KeyUsage
}

// Matches reports whether k satisfies r. A nil or invalid key never matches.
func (r KeyReq) Matches(k *Key) bool {
	if k == nil || !k.IsValid() {
		return false
	}
	if r.KeyID != "" && k.DataID != "" && k.DataID != r.KeyID {
		return false
	}
	if r.KeyBitsize > 0 {
		if bs := k.Bitsize(); bs > 0 && bs != r.KeyBitsize {
			return false
		}
	}
	return true
}

// Key is the mutable key aggregate threaded through Read/Write. Handlers
// populate it incrementally: KeyName may set Name before a value is known,
// KeyValue/X509Data/EncryptedKey etc. set Value and DataID.
type Key struct {
	Name         string
	DataID       string
	Value        interface{}
	Certificates []x509.Certificate
}

// IsValid reports whether the key carries usable key material.
func (k *Key) IsValid() bool {
	return k != nil && k.Value != nil
}

// Bitsize returns the key size in bits for the concrete types this module
// knows about, or 0 if the size can't be determined generically.
func (k *Key) Bitsize() int {
	if k == nil {
		return 0
	}
	switch v := k.Value.(type) {
	case []byte:
		return len(v) * 8
	case *rsa.PublicKey:
		return v.N.BitLen()
	default:
		return 0
	}
}

// Reset clears the key back to its zero value, in place.
func (k *Key) Reset() {
	if k != nil {
		*k = Key{}
	}
}
