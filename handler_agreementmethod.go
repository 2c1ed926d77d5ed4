package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

func init() {
	DefaultRegistry.Register(&Descriptor{
		ID:        "agreement-method",
		Name:      "AgreementMethod",
		Namespace: xmlenc.NamespaceXMLEnc11,
		Usage:     UsageReadFromKeyInfo | UsageWriteToKeyInfo,
		ReadXML:   agreementMethodRead,
		WriteXML:  agreementMethodWrite,
	})
}

func agreementMethodRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	release, err := ctx.enterEncryptedKeyLevel()
	if err != nil {
		return err
	}
	defer release()

	ec := ctx.ensureEncCtx()
	agreed, aerr := ec.AgreementMethodGenerate(ctx.KeyReq.KeyID, node, ctx)
	if aerr != nil {
		if ctx.Flags&FlagEncKeyDontStopOnFailedDecryption != 0 {
			return nil
		}
		return fmt.Errorf("xmlsec: AgreementMethod key agreement failed: %w", aerr)
	}
	if agreed == nil || !ctx.KeyReq.Matches(agreed) {
		return nil
	}
	*key = *agreed
	return nil
}

// agreementMethodWrite is, unlike DerivedKey/EncryptedKey, not a no-op: the
// sender populates a fresh AgreementMethod (ephemeral key + KDF params) for
// the configured recipient.
func agreementMethodWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	release, err := ctx.enterEncryptedKeyLevel()
	if err != nil {
		return WriteOutcomeSkipped, err
	}
	defer release()

	ec := ctx.ensureEncCtx()
	if err := ec.AgreementMethodXMLWrite(node, ctx); err != nil {
		return WriteOutcomeSkipped, err
	}
	return WriteOutcomeWrote, nil
}
