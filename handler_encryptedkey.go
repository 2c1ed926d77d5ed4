package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

func init() {
	DefaultRegistry.Register(&Descriptor{
		ID:        "encrypted-key",
		Name:      "EncryptedKey",
		Namespace: xmlenc.NamespaceXMLEnc,
		Usage:     UsageReadFromKeyInfo | UsageWriteToKeyInfo,
		ReadXML:   encryptedKeyRead,
		WriteXML:  encryptedKeyWrite,
	})
}

func encryptedKeyRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	release, err := ctx.enterEncryptedKeyLevel()
	if err != nil {
		return err
	}
	defer release()

	ec := ctx.ensureEncCtx()
	buf, derr := ec.DecryptToBuffer(node)
	if derr != nil || buf == nil || buf.Len() == 0 {
		if ctx.Flags&FlagEncKeyDontStopOnFailedDecryption != 0 {
			return nil
		}
		if derr != nil {
			return fmt.Errorf("xmlsec: EncryptedKey decryption failed: %w", derr)
		}
		return fmt.Errorf("%w: EncryptedKey decryption produced no data", ErrInvalidContent)
	}
	defer zero(buf.Bytes())

	keyID := ctx.KeyReq.KeyID
	if keyID == "" {
		keyID = "symmetric-key"
	}
	d := ctx.registry().FindByID(keyID)
	if d == nil || d.ReadBinary == nil {
		return fmt.Errorf("%w: no binary reader registered for key id %q", ErrInvalidKeyData, keyID)
	}
	return d.ReadBinary(key, buf.Bytes(), ctx)
}

func encryptedKeyWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	if !key.IsValid() {
		return WriteOutcomeSkipped, nil
	}

	tmp := NewKeyInfoContext(ctx.KeysMngr)
	ctx.CopyUserPref(tmp)
	tmp.KeyReq = KeyReq{}
	tmp.Operation = OperationWrite

	d := ctx.registry().FindByID(key.DataID)
	if d == nil || d.WriteBinary == nil {
		return WriteOutcomeSkipped, fmt.Errorf("%w: no binary writer registered for key id %q", ErrInvalidKeyData, key.DataID)
	}
	plain, err := d.WriteBinary(key, tmp)
	if err != nil {
		return WriteOutcomeSkipped, err
	}
	defer zero(plain)

	ec := ctx.ensureEncCtx()
	if err := ec.BinaryEncrypt(node, plain); err != nil {
		return WriteOutcomeSkipped, err
	}
	return WriteOutcomeWrote, nil
}
