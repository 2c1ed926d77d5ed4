// Package xmlenc implements the key-transport and key-agreement primitives
// of XML Encryption Syntax and Processing Version 1.1
// (https://www.w3.org/TR/xmlenc-core1/) that the xmlsec KeyInfo dispatch
// engine needs to resolve EncryptedKey, DerivedKey and AgreementMethod:
// AES Key Wrap, X25519 ECDH key agreement, and HKDF key derivation.
package xmlenc

// Algorithm and namespace URIs as defined in the W3C XML Encryption
// specification, limited to what the key-transport/key-agreement path uses.
const (
	NamespaceXMLEnc      = "http://www.w3.org/2001/04/xmlenc#"
	NamespaceXMLEnc11    = "http://www.w3.org/2009/xmlenc11#"
	NamespaceXMLDSig     = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXMLDSig11   = "http://www.w3.org/2009/xmldsig11#"
	NamespaceXMLDSigMore = "http://www.w3.org/2001/04/xmldsig-more#"

	// Key Wrap Algorithms
	AlgorithmAES128KW = "http://www.w3.org/2001/04/xmlenc#kw-aes128"
	AlgorithmAES192KW = "http://www.w3.org/2001/04/xmlenc#kw-aes192"
	AlgorithmAES256KW = "http://www.w3.org/2001/04/xmlenc#kw-aes256"

	// Key Agreement Algorithms
	AlgorithmX25519 = "http://www.w3.org/2021/04/xmldsig-more#x25519"

	// Key Derivation Algorithms
	AlgorithmHKDF = "http://www.w3.org/2021/04/xmldsig-more#hkdf"

	// Digest Algorithms (used as the HKDF PRF)
	AlgorithmHMACSHA256 = "http://www.w3.org/2001/04/xmldsig-more#hmac-sha256"
)

// KeySize returns the key size in bytes for the given key wrap algorithm URI.
// Returns 0 if the algorithm is not recognized.
func KeySize(algorithm string) int {
	switch algorithm {
	case AlgorithmAES128KW:
		return 16 // 128 bits
	case AlgorithmAES192KW:
		return 24 // 192 bits
	case AlgorithmAES256KW:
		return 32 // 256 bits
	default:
		return 0
	}
}
