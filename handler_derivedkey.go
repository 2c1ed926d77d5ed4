package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

func init() {
	DefaultRegistry.Register(&Descriptor{
		ID:        "derived-key",
		Name:      "DerivedKey",
		Namespace: xmlenc.NamespaceXMLEnc11,
		Usage:     UsageReadFromKeyInfo | UsageWriteToKeyInfo,
		ReadXML:   derivedKeyRead,
		WriteXML:  derivedKeyWrite,
	})
}

// derivedKeyRead shares the EncryptedKey/AgreementMethod recursion budget.
//
// TODO: a derived key is not cached under its own name for back-reference
// by later siblings within the same KeyInfo (upstream xmlsec issue #515).
// Left unimplemented deliberately rather than adding caching machinery
// nothing here depends on being correct.
func derivedKeyRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	release, err := ctx.enterEncryptedKeyLevel()
	if err != nil {
		return err
	}
	defer release()

	ec := ctx.ensureEncCtx()
	derived, derr := ec.DeriveKey(ctx.KeyReq.KeyID, node, ctx)
	if derr != nil {
		if ctx.Flags&FlagEncKeyDontStopOnFailedDecryption != 0 {
			return nil
		}
		return fmt.Errorf("xmlsec: DerivedKey derivation failed: %w", derr)
	}
	if derived == nil || !ctx.KeyReq.Matches(derived) {
		return nil
	}
	*key = *derived
	return nil
}

func derivedKeyWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	return WriteOutcomeSkipped, nil
}
