package xmlenc

import "github.com/beevik/etree"

// This file is the seam between xmlenc's cryptographic primitives and the
// xmlsec package's KeyInfo dispatch engine: it exports just enough of the
// AgreementMethod/KeyDerivationMethod (de)serialization already implemented
// in types.go for the EncryptedKey/DerivedKey/AgreementMethod handlers to
// drive directly, without duplicating the parsing logic.

// ParseAgreementMethod parses an xenc11:AgreementMethod element in place
// (elem itself is the AgreementMethod node, not a wrapper around it).
func ParseAgreementMethod(elem *etree.Element) *AgreementMethod {
	if elem == nil {
		return nil
	}
	return parseAgreementMethod(elem)
}

// AppendAgreementMethod serializes am as a child of parent.
func AppendAgreementMethod(am *AgreementMethod, parent *etree.Element) {
	am.appendTo(parent)
}

// ParseHKDFParams extracts the HKDFParams out of a KeyDerivationMethod
// element, or nil if it has no HKDFParams child. The element's Algorithm
// attribute is not checked.
func ParseHKDFParams(kdmElem *etree.Element) *HKDFParams {
	if kdmElem == nil {
		return nil
	}
	return parseKeyDerivationMethod(kdmElem).HKDFParams
}

// DeriveKeyHKDF derives a keyLength-byte key from secret using HKDF-SHA256,
// honoring params.Salt/Info/KeyLength when params is non-nil.
func DeriveKeyHKDF(secret []byte, params *HKDFParams, keyLength int) ([]byte, error) {
	return deriveKeyHKDF(secret, params, keyLength)
}

// FillEncryptedKeyElement transplants ek's serialized attributes and
// children onto node, which is the pre-existing <EncryptedKey> template
// the caller's document already owns.
func FillEncryptedKeyElement(node *etree.Element, ek *EncryptedKey) {
	fresh := ek.ToElement()
	for _, attr := range fresh.Attr {
		if attr.Space != "" {
			node.CreateAttr(attr.Space+":"+attr.Key, attr.Value)
		} else {
			node.CreateAttr(attr.Key, attr.Value)
		}
	}
	for _, child := range fresh.ChildElements() {
		node.AddChild(child.Copy())
	}
}
