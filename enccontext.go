package xmlsec

import (
	"bytes"
	"crypto/ecdh"
	"fmt"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

// EncContext bridges the KeyInfo dispatch engine to xmlenc's key-wrap,
// key-agreement and key-derivation primitives. It embeds a read and a
// write KeyInfoContext per the ownership-direction design that breaks the
// mutual recursion between KeyInfo processing and encrypted-key processing:
// those two sub-contexts are what a nested OriginatorKeyInfo/
// RecipientKeyInfo would recurse through, kept separate from the context
// that created this EncContext so their recursion budgets don't alias.
type EncContext struct {
	KeysMngr        *KeysManager
	KeyInfoReadCtx  *KeyInfoContext
	KeyInfoWriteCtx *KeyInfoContext

	// StaticPrivateKey is this recipient's long-term X25519 private key,
	// used to unwrap EncryptedKey/AgreementMethod material addressed to it.
	StaticPrivateKey *ecdh.PrivateKey
	// RecipientPublicKey is the counterparty's long-term X25519 public key,
	// used when this context is driving an AgreementMethod *write*
	// (EncryptedKey writes go through KeyWrapper instead).
	RecipientPublicKey *ecdh.PublicKey
	// WrapAlgorithm is the AES-KW variant used by BinaryEncrypt; defaults
	// to AlgorithmAES128KW when empty.
	WrapAlgorithm string
	// KeyWrapper backs EncryptedKey writes (as opposed to AgreementMethod
	// writes, which generate their own ephemeral agreement per call).
	KeyWrapper xmlenc.KeyWrapper
}

func NewEncContext(mngr *KeysManager) *EncContext {
	return &EncContext{
		KeysMngr:        mngr,
		KeyInfoReadCtx:  NewKeyInfoContext(mngr),
		KeyInfoWriteCtx: NewKeyInfoContext(mngr),
	}
}

func (ec *EncContext) Reset() {
	ec.KeyInfoReadCtx.Reset()
	ec.KeyInfoWriteCtx.Reset()
}

// DecryptToBuffer decrypts the <xenc:EncryptedKey> at node, returning the
// plaintext key bytes it carries.
func (ec *EncContext) DecryptToBuffer(node *etree.Element) (*bytes.Buffer, error) {
	ek, err := xmlenc.ParseEncryptedKey(node)
	if err != nil {
		return nil, fmt.Errorf("xmlsec: parsing EncryptedKey: %w", err)
	}
	unwrapper, err := ec.keyUnwrapperFor(ek)
	if err != nil {
		return nil, err
	}
	plain, err := unwrapper.UnwrapKey(ek)
	if err != nil {
		return nil, fmt.Errorf("xmlsec: unwrapping EncryptedKey: %w", err)
	}
	return bytes.NewBuffer(plain), nil
}

func (ec *EncContext) keyUnwrapperFor(ek *xmlenc.EncryptedKey) (xmlenc.KeyUnwrapper, error) {
	if ek.KeyInfo == nil || ek.KeyInfo.AgreementMethod == nil {
		return nil, fmt.Errorf("xmlsec: EncryptedKey does not carry a supported key-transport mechanism")
	}
	am := ek.KeyInfo.AgreementMethod
	if am.Algorithm != xmlenc.AlgorithmX25519 {
		return nil, fmt.Errorf("xmlsec: unsupported key agreement algorithm %q", am.Algorithm)
	}
	if ec.StaticPrivateKey == nil {
		return nil, fmt.Errorf("xmlsec: no static X25519 private key configured for key agreement")
	}
	if am.OriginatorKeyInfo == nil || am.OriginatorKeyInfo.KeyValue == nil || am.OriginatorKeyInfo.KeyValue.ECKeyValue == nil {
		return nil, fmt.Errorf("xmlsec: AgreementMethod missing OriginatorKeyInfo/ECKeyValue")
	}
	ephemeralPub, err := xmlenc.ParseX25519PublicKey(am.OriginatorKeyInfo.KeyValue.ECKeyValue.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("xmlsec: parsing ephemeral X25519 public key: %w", err)
	}
	var hkdfParams *xmlenc.HKDFParams
	if am.KeyDerivationMethod != nil {
		hkdfParams = am.KeyDerivationMethod.HKDFParams
	}
	return xmlenc.NewX25519KeyAgreementForDecrypt(ec.StaticPrivateKey, ephemeralPub, hkdfParams), nil
}

// DeriveKey implements the <DerivedKey> read path: the master key it
// derives from is looked up by MasterKeyName through the keys manager,
// rather than transported or agreed upon.
func (ec *EncContext) DeriveKey(desiredID string, node *etree.Element, ctx *KeyInfoContext) (*Key, error) {
	masterName := node.SelectAttrValue("MasterKeyName", "")
	if masterName == "" {
		if mk := node.FindElement("./MasterKeyName"); mk != nil {
			masterName = mk.Text()
		}
	}
	if masterName == "" || ec.KeysMngr == nil {
		return nil, fmt.Errorf("xmlsec: DerivedKey requires a resolvable MasterKeyName")
	}
	master, err := ec.KeysMngr.FindKeyByName(masterName, ctx)
	if err != nil {
		return nil, err
	}
	if master == nil || !master.IsValid() {
		return nil, fmt.Errorf("xmlsec: master key %q not found", masterName)
	}
	secret, ok := master.Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("xmlsec: master key %q is not symmetric key material", masterName)
	}

	kdmElem := node.FindElement("./KeyDerivationMethod")
	if kdmElem == nil {
		return nil, fmt.Errorf("%w: <DerivedKey> missing KeyDerivationMethod", ErrInvalidNode)
	}
	size := ctx.KeyReq.KeyBitsize / 8
	if size == 0 {
		size = 16
	}
	derived, err := xmlenc.DeriveKeyHKDF(secret, xmlenc.ParseHKDFParams(kdmElem), size)
	if err != nil {
		return nil, fmt.Errorf("xmlsec: HKDF derivation failed: %w", err)
	}
	return &Key{Name: masterName, DataID: desiredID, Value: derived}, nil
}

// AgreementMethodGenerate implements the <AgreementMethod> read path: it
// performs the X25519 ECDH exchange against the ephemeral public key in
// OriginatorKeyInfo and derives a key encryption key via HKDF.
func (ec *EncContext) AgreementMethodGenerate(desiredID string, node *etree.Element, ctx *KeyInfoContext) (*Key, error) {
	am := xmlenc.ParseAgreementMethod(node)
	if am == nil {
		return nil, fmt.Errorf("%w: malformed <AgreementMethod>", ErrInvalidNode)
	}
	if am.Algorithm != xmlenc.AlgorithmX25519 {
		return nil, fmt.Errorf("xmlsec: unsupported key agreement algorithm %q", am.Algorithm)
	}
	if ec.StaticPrivateKey == nil {
		return nil, fmt.Errorf("xmlsec: no static X25519 private key configured for key agreement")
	}
	if am.OriginatorKeyInfo == nil || am.OriginatorKeyInfo.KeyValue == nil || am.OriginatorKeyInfo.KeyValue.ECKeyValue == nil {
		return nil, fmt.Errorf("xmlsec: AgreementMethod missing OriginatorKeyInfo/ECKeyValue")
	}
	ephemeralPub, err := xmlenc.ParseX25519PublicKey(am.OriginatorKeyInfo.KeyValue.ECKeyValue.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("xmlsec: parsing ephemeral X25519 public key: %w", err)
	}

	var hkdfParams *xmlenc.HKDFParams
	if am.KeyDerivationMethod != nil {
		hkdfParams = am.KeyDerivationMethod.HKDFParams
	}
	ka := xmlenc.NewX25519KeyAgreementForDecrypt(ec.StaticPrivateKey, ephemeralPub, hkdfParams)

	size := ctx.KeyReq.KeyBitsize / 8
	if size == 0 {
		size = 16
	}
	kek, err := ka.DeriveKeyEncryptionKey(size)
	if err != nil {
		return nil, fmt.Errorf("xmlsec: key agreement derivation failed: %w", err)
	}
	return &Key{DataID: desiredID, Value: kek}, nil
}

// AgreementMethodXMLWrite populates node with a freshly generated
// AgreementMethod (ephemeral X25519 key pair + HKDF parameters) for
// ec.RecipientPublicKey.
func (ec *EncContext) AgreementMethodXMLWrite(node *etree.Element, ctx *KeyInfoContext) error {
	if ec.RecipientPublicKey == nil {
		return fmt.Errorf("xmlsec: AgreementMethod write requires a configured recipient public key")
	}
	hkdfParams := xmlenc.DefaultHKDFParams(nil)
	ka, err := xmlenc.NewX25519KeyAgreement(ec.RecipientPublicKey, hkdfParams)
	if err != nil {
		return fmt.Errorf("xmlsec: generating ephemeral X25519 key: %w", err)
	}

	am := &xmlenc.AgreementMethod{
		Algorithm: xmlenc.AlgorithmX25519,
		KeyDerivationMethod: &xmlenc.KeyDerivationMethod{
			Algorithm:  xmlenc.AlgorithmHKDF,
			HKDFParams: hkdfParams,
		},
		OriginatorKeyInfo: &xmlenc.KeyInfo{
			KeyValue: &xmlenc.KeyValue{
				ECKeyValue: &xmlenc.ECKeyValue{
					NamedCurve: x25519CurveURI,
					PublicKey:  ka.EphemeralPublicKey.Bytes(),
				},
			},
		},
	}
	// AppendAgreementMethod builds a new child element; its attributes and
	// children are moved onto node so node itself becomes the AgreementMethod.
	holder := etree.NewElement("holder")
	xmlenc.AppendAgreementMethod(am, holder)
	fresh := holder.ChildElements()[0]
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
	return nil
}

// BinaryEncrypt wraps plain into an <xenc:EncryptedKey> template at node
// using ec.KeyWrapper.
func (ec *EncContext) BinaryEncrypt(node *etree.Element, plain []byte) error {
	if ec.KeyWrapper == nil {
		return fmt.Errorf("xmlsec: BinaryEncrypt requires a configured KeyWrapper")
	}
	wrapAlg := ec.WrapAlgorithm
	if wrapAlg == "" {
		wrapAlg = xmlenc.AlgorithmAES128KW
	}
	ek, err := ec.KeyWrapper.WrapKey(plain, wrapAlg)
	if err != nil {
		return fmt.Errorf("xmlsec: wrapping key material: %w", err)
	}
	xmlenc.FillEncryptedKeyElement(node, ek)
	return nil
}
