package xmlenc

// KeyWrapper wraps a content or key-transport key for a specific recipient,
// producing the EncryptedKey structure that carries it. X25519KeyAgreement
// is the only implementation.
type KeyWrapper interface {
	WrapKey(cek []byte, wrapAlgorithm string) (*EncryptedKey, error)
}

// KeyUnwrapper recovers the key material an EncryptedKey carries.
// X25519KeyAgreement is the only implementation.
type KeyUnwrapper interface {
	UnwrapKey(ek *EncryptedKey) ([]byte, error)
}
