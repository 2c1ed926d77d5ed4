package xmlenc

import (
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// EncryptedType is the abstract base type EncryptedKey shares with the
// (unimplemented) EncryptedData from the XML Encryption specification.
type EncryptedType struct {
	ID               string
	Type             string
	Recipient        string
	EncryptionMethod *EncryptionMethod
	KeyInfo          *KeyInfo
	CipherData       *CipherData
}

// EncryptedKey represents the xenc:EncryptedKey element, which wraps a
// content or key encryption key for a specific recipient.
type EncryptedKey struct {
	EncryptedType
	CarriedKeyName string
}

// EncryptionMethod specifies the algorithm used for key wrapping.
type EncryptionMethod struct {
	Algorithm string // URI of the key wrap algorithm
}

// CipherData carries the wrapped key material inline as CipherValue.
type CipherData struct {
	CipherValue []byte
}

// KeyInfo is the subset of ds:KeyInfo this package needs: AgreementMethod
// at the EncryptedKey level, and KeyValue/ECKeyValue when reused as the
// nested OriginatorKeyInfo inside an AgreementMethod.
type KeyInfo struct {
	AgreementMethod *AgreementMethod
	KeyValue        *KeyValue
}

// KeyValue contains a public key value.
type KeyValue struct {
	ECKeyValue *ECKeyValue
}

// ECKeyValue contains EC public key parameters. Only X25519 is supported.
type ECKeyValue struct {
	NamedCurve string
	PublicKey  []byte
}

// AgreementMethod represents xenc11:AgreementMethod for X25519 key agreement.
type AgreementMethod struct {
	Algorithm           string // AlgorithmX25519
	KeyDerivationMethod *KeyDerivationMethod
	OriginatorKeyInfo   *KeyInfo
}

// KeyDerivationMethod specifies how to derive the key encryption key.
type KeyDerivationMethod struct {
	Algorithm  string // AlgorithmHKDF
	HKDFParams *HKDFParams
}

// HKDFParams contains parameters for HKDF (RFC 5869).
type HKDFParams struct {
	PRF       string // PRF algorithm URI (e.g., HMAC-SHA256)
	Salt      []byte
	Info      []byte
	KeyLength int // Output key length in bits
}

// ToElement converts EncryptedKey to an etree.Element.
func (ek *EncryptedKey) ToElement() *etree.Element {
	elem := etree.NewElement("xenc:EncryptedKey")
	elem.CreateAttr("xmlns:xenc", NamespaceXMLEnc)

	if ek.ID != "" {
		elem.CreateAttr("Id", ek.ID)
	}
	if ek.Type != "" {
		elem.CreateAttr("Type", ek.Type)
	}
	if ek.Recipient != "" {
		elem.CreateAttr("Recipient", ek.Recipient)
	}

	if ek.EncryptionMethod != nil {
		ek.EncryptionMethod.appendTo(elem)
	}
	if ek.KeyInfo != nil {
		ek.KeyInfo.appendTo(elem)
	}
	if ek.CipherData != nil {
		ek.CipherData.appendTo(elem)
	}
	if ek.CarriedKeyName != "" {
		ckn := elem.CreateElement("xenc:CarriedKeyName")
		ckn.SetText(ek.CarriedKeyName)
	}

	return elem
}

func (em *EncryptionMethod) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("xenc:EncryptionMethod")
	elem.CreateAttr("Algorithm", em.Algorithm)
}

func (cd *CipherData) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("xenc:CipherData")
	cv := elem.CreateElement("xenc:CipherValue")
	cv.SetText(base64.StdEncoding.EncodeToString(cd.CipherValue))
}

func (ki *KeyInfo) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("ds:KeyInfo")
	elem.CreateAttr("xmlns:ds", NamespaceXMLDSig)
	if ki.AgreementMethod != nil {
		ki.AgreementMethod.appendTo(elem)
	}
}

func (am *AgreementMethod) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("xenc:AgreementMethod")
	elem.CreateAttr("Algorithm", am.Algorithm)

	if am.KeyDerivationMethod != nil {
		am.KeyDerivationMethod.appendTo(elem)
	}
	if am.OriginatorKeyInfo != nil && am.OriginatorKeyInfo.KeyValue != nil && am.OriginatorKeyInfo.KeyValue.ECKeyValue != nil {
		eck := am.OriginatorKeyInfo.KeyValue.ECKeyValue
		oki := elem.CreateElement("xenc:OriginatorKeyInfo")
		kv := oki.CreateElement("ds:KeyValue")
		kv.CreateAttr("xmlns:ds", NamespaceXMLDSig)
		ec := kv.CreateElement("dsig11:ECKeyValue")
		ec.CreateAttr("xmlns:dsig11", NamespaceXMLDSig11)
		if eck.NamedCurve != "" {
			nc := ec.CreateElement("dsig11:NamedCurve")
			nc.CreateAttr("URI", eck.NamedCurve)
		}
		pk := ec.CreateElement("dsig11:PublicKey")
		pk.SetText(base64.StdEncoding.EncodeToString(eck.PublicKey))
	}
}

func (kdm *KeyDerivationMethod) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("xenc11:KeyDerivationMethod")
	elem.CreateAttr("xmlns:xenc11", NamespaceXMLEnc11)
	elem.CreateAttr("Algorithm", kdm.Algorithm)

	if kdm.HKDFParams != nil {
		params := elem.CreateElement("dsig-more:HKDFParams")
		params.CreateAttr("xmlns:dsig-more", NamespaceXMLDSigMore)
		if kdm.HKDFParams.PRF != "" {
			prf := params.CreateElement("dsig-more:PRF")
			prf.CreateAttr("Algorithm", kdm.HKDFParams.PRF)
		}
		if len(kdm.HKDFParams.Salt) > 0 {
			salt := params.CreateElement("dsig-more:Salt")
			specified := salt.CreateElement("dsig-more:Specified")
			specified.SetText(base64.StdEncoding.EncodeToString(kdm.HKDFParams.Salt))
		}
		if len(kdm.HKDFParams.Info) > 0 {
			info := params.CreateElement("dsig-more:Info")
			info.SetText(base64.StdEncoding.EncodeToString(kdm.HKDFParams.Info))
		}
		if kdm.HKDFParams.KeyLength > 0 {
			kl := params.CreateElement("dsig-more:KeyLength")
			kl.SetText(fmt.Sprintf("%d", kdm.HKDFParams.KeyLength))
		}
	}
}

// ParseEncryptedKey parses an xenc:EncryptedKey element.
func ParseEncryptedKey(elem *etree.Element) (*EncryptedKey, error) {
	if elem == nil {
		return nil, fmt.Errorf("nil element")
	}

	ek := &EncryptedKey{}
	ek.ID = elem.SelectAttrValue("Id", "")
	ek.Type = elem.SelectAttrValue("Type", "")
	ek.Recipient = elem.SelectAttrValue("Recipient", "")

	if emElem := elem.FindElement("./EncryptionMethod"); emElem != nil {
		ek.EncryptionMethod = &EncryptionMethod{Algorithm: emElem.SelectAttrValue("Algorithm", "")}
	}

	if kiElem := elem.FindElement("./KeyInfo"); kiElem != nil {
		var err error
		ek.KeyInfo, err = parseKeyInfo(kiElem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse KeyInfo: %w", err)
		}
	}

	if cdElem := elem.FindElement("./CipherData"); cdElem != nil {
		var err error
		ek.CipherData, err = parseCipherData(cdElem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CipherData: %w", err)
		}
	}

	if cknElem := elem.FindElement("./CarriedKeyName"); cknElem != nil {
		ek.CarriedKeyName = cknElem.Text()
	}

	return ek, nil
}

func parseCipherData(elem *etree.Element) (*CipherData, error) {
	cd := &CipherData{}
	if cvElem := elem.FindElement("./CipherValue"); cvElem != nil {
		var err error
		cd.CipherValue, err = base64.StdEncoding.DecodeString(cvElem.Text())
		if err != nil {
			return nil, fmt.Errorf("failed to decode CipherValue: %w", err)
		}
	}
	return cd, nil
}

func parseKeyInfo(elem *etree.Element) (*KeyInfo, error) {
	ki := &KeyInfo{}
	if amElem := elem.FindElement("./AgreementMethod"); amElem != nil {
		ki.AgreementMethod = parseAgreementMethod(amElem)
	}
	return ki, nil
}

func parseAgreementMethod(elem *etree.Element) *AgreementMethod {
	am := &AgreementMethod{
		Algorithm: elem.SelectAttrValue("Algorithm", ""),
	}

	if kdmElem := elem.FindElement("./KeyDerivationMethod"); kdmElem != nil {
		am.KeyDerivationMethod = parseKeyDerivationMethod(kdmElem)
	}

	if okiElem := elem.FindElement("./OriginatorKeyInfo"); okiElem != nil {
		if eckElem := okiElem.FindElement("./KeyValue/ECKeyValue"); eckElem != nil {
			eck := &ECKeyValue{}
			if ncElem := eckElem.FindElement("./NamedCurve"); ncElem != nil {
				eck.NamedCurve = ncElem.SelectAttrValue("URI", "")
			}
			if pkElem := eckElem.FindElement("./PublicKey"); pkElem != nil {
				eck.PublicKey, _ = base64.StdEncoding.DecodeString(pkElem.Text())
			}
			am.OriginatorKeyInfo = &KeyInfo{KeyValue: &KeyValue{ECKeyValue: eck}}
		}
	}

	return am
}

func parseKeyDerivationMethod(elem *etree.Element) *KeyDerivationMethod {
	kdm := &KeyDerivationMethod{
		Algorithm: elem.SelectAttrValue("Algorithm", ""),
	}

	if paramsElem := elem.FindElement("./HKDFParams"); paramsElem != nil {
		kdm.HKDFParams = &HKDFParams{}
		if prfElem := paramsElem.FindElement("./PRF"); prfElem != nil {
			kdm.HKDFParams.PRF = prfElem.SelectAttrValue("Algorithm", "")
		}
		if saltElem := paramsElem.FindElement("./Salt/Specified"); saltElem != nil {
			kdm.HKDFParams.Salt, _ = base64.StdEncoding.DecodeString(saltElem.Text())
		}
		if infoElem := paramsElem.FindElement("./Info"); infoElem != nil {
			kdm.HKDFParams.Info, _ = base64.StdEncoding.DecodeString(infoElem.Text())
		}
		if klElem := paramsElem.FindElement("./KeyLength"); klElem != nil {
			fmt.Sscanf(klElem.Text(), "%d", &kdm.HKDFParams.KeyLength)
		}
	}

	return kdm
}
