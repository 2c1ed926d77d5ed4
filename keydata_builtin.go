package xmlsec

import (
	"crypto/ecdh"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

// x25519CurveURI is the curve identifier this module emits and recognizes
// for ds11:ECKeyValue/NamedCurve; xmlsec's own dsig11 profile allows other
// named curves, but only X25519 has a wired encryption-context consumer.
const x25519CurveURI = "urn:ietf:params:xml:ns:keyprov:curve:x25519"

func init() {
	DefaultRegistry.Register(&Descriptor{
		ID:        "x509-data",
		Name:      "X509Data",
		Namespace: xmlenc.NamespaceXMLDSig,
		Href:      "http://www.w3.org/2000/09/xmldsig#X509Data",
		Usage:     UsageReadFromKeyValue | UsageWriteKeyValue | UsageRetrievalMethodXML,
		ReadXML:   x509DataRead,
		WriteXML:  x509DataWrite,
	})
	DefaultRegistry.Register(&Descriptor{
		ID:        "rsa-key-value",
		Name:      "RSAKeyValue",
		Namespace: xmlenc.NamespaceXMLDSig,
		Usage:     UsageReadFromKeyValue | UsageWriteKeyValue,
		ReadXML:   rsaKeyValueRead,
		WriteXML:  rsaKeyValueWrite,
	})
	DefaultRegistry.Register(&Descriptor{
		ID:        "ec-key-value",
		Name:      "ECKeyValue",
		Namespace: xmlenc.NamespaceXMLDSig11,
		Usage:     UsageReadFromKeyValue | UsageWriteKeyValue,
		ReadXML:   ecKeyValueRead,
		WriteXML:  ecKeyValueWrite,
	})
	DefaultRegistry.Register(&Descriptor{
		ID:          "symmetric-key",
		Usage:       UsageRetrievalMethodBinary,
		ReadBinary:  symmetricKeyReadBinary,
		WriteBinary: symmetricKeyWriteBinary,
	})
}

// symmetricKeyReadBinary is what an EncryptedKey plaintext becomes when
// KeyReq.KeyID is empty: a content-encryption or key-wrap key carries no
// self-describing structure, so the bytes it decrypts to are the key.
// DerivedKey and AgreementMethod results do not pass through it.
func symmetricKeyReadBinary(key *Key, data []byte, ctx *KeyInfoContext) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty symmetric key material", ErrInvalidKeyData)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	key.Value = cp
	key.DataID = "symmetric-key"
	return nil
}

func symmetricKeyWriteBinary(key *Key, ctx *KeyInfoContext) ([]byte, error) {
	raw, ok := key.Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: key is not symmetric key material", ErrTypeMismatch)
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}

// x509DataRead tolerates individual certificate parse failures the way
// validator.go's certificate loader does: log and keep trying siblings.
func x509DataRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	var certs []x509.Certificate
	for _, certElem := range node.SelectElements("X509Certificate") {
		der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(certElem.Text()))
		if err != nil {
			log.Printf("xmlsec: unable to base64-decode X509Certificate: %v. Trying next certificate.", err)
			continue
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			log.Printf("xmlsec: unable to parse X509Certificate: %v. Trying next certificate.", err)
			continue
		}
		certs = append(certs, *cert)
	}
	if len(certs) == 0 {
		return fmt.Errorf("%w: <X509Data> did not contain a usable X509Certificate", ErrInvalidContent)
	}
	key.Certificates = append(key.Certificates, certs...)
	if !key.IsValid() {
		key.Value = certs[0].PublicKey
		key.DataID = "x509-data"
	}
	return nil
}

func x509DataWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	if len(key.Certificates) == 0 {
		return WriteOutcomeSkipped, nil
	}
	for _, cert := range key.Certificates {
		c := node.CreateElement("X509Certificate")
		c.SetText(base64.StdEncoding.EncodeToString(cert.Raw))
	}
	return WriteOutcomeWrote, nil
}

func rsaKeyValueRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	modElem := node.SelectElement("Modulus")
	expElem := node.SelectElement("Exponent")
	if modElem == nil || expElem == nil {
		return fmt.Errorf("%w: <RSAKeyValue> requires Modulus and Exponent", ErrInvalidContent)
	}
	modBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(modElem.Text()))
	if err != nil {
		return fmt.Errorf("%w: decoding Modulus: %v", ErrInvalidContent, err)
	}
	expBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(expElem.Text()))
	if err != nil {
		return fmt.Errorf("%w: decoding Exponent: %v", ErrInvalidContent, err)
	}

	key.Value = &rsa.PublicKey{
		N: new(big.Int).SetBytes(modBytes),
		E: int(new(big.Int).SetBytes(expBytes).Int64()),
	}
	key.DataID = "rsa-key-value"
	return nil
}

func rsaKeyValueWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	pub, ok := key.Value.(*rsa.PublicKey)
	if !ok {
		return WriteOutcomeSkipped, nil
	}
	mod := node.CreateElement("Modulus")
	mod.SetText(base64.StdEncoding.EncodeToString(pub.N.Bytes()))
	exp := node.CreateElement("Exponent")
	exp.SetText(base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()))
	return WriteOutcomeWrote, nil
}

func ecKeyValueRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	ncElem := node.SelectElement("NamedCurve")
	pkElem := node.SelectElement("PublicKey")
	if ncElem == nil || pkElem == nil {
		return fmt.Errorf("%w: <ECKeyValue> requires NamedCurve and PublicKey", ErrInvalidContent)
	}
	uri := ncElem.SelectAttrValue("URI", "")
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(pkElem.Text()))
	if err != nil {
		return fmt.Errorf("%w: decoding PublicKey: %v", ErrInvalidContent, err)
	}

	switch uri {
	case x25519CurveURI:
		pub, err := ecdh.X25519().NewPublicKey(raw)
		if err != nil {
			return fmt.Errorf("%w: invalid X25519 public key: %v", ErrInvalidKeyData, err)
		}
		key.Value = pub
	default:
		return fmt.Errorf("%w: unsupported EC curve %q", ErrInvalidAttribute, uri)
	}
	key.DataID = "ec-key-value"
	return nil
}

func ecKeyValueWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	pub, ok := key.Value.(*ecdh.PublicKey)
	if !ok {
		return WriteOutcomeSkipped, nil
	}
	nc := node.CreateElement("NamedCurve")
	nc.CreateAttr("URI", x25519CurveURI)
	pk := node.CreateElement("PublicKey")
	pk.SetText(base64.StdEncoding.EncodeToString(pub.Bytes()))
	return WriteOutcomeWrote, nil
}
