package xmlsec

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

func init() {
	DefaultRegistry.Register(&Descriptor{
		ID:        "key-name",
		Name:      "KeyName",
		Namespace: xmlenc.NamespaceXMLDSig,
		Usage:     UsageReadFromKeyInfo | UsageWriteToKeyInfo,
		ReadXML:   keyNameRead,
		WriteXML:  keyNameWrite,
	})
}

func keyNameRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	name := strings.TrimSpace(node.Text())
	if name == "" {
		return fmt.Errorf("%w: <KeyName> has empty content", ErrInvalidContent)
	}

	if !key.IsValid() && ctx.KeysMngr != nil {
		found, err := ctx.KeysMngr.FindKeyByName(name, ctx)
		if err != nil {
			return err
		}
		if found != nil {
			*key = *found
			key.Name = name
			return nil
		}
	}

	// No manager, or the manager doesn't know this name: the name must
	// still agree with whatever a prior sibling already established.
	if key.Name != "" && key.Name != name {
		return fmt.Errorf("%w: <KeyName> %q contradicts already-known name %q",
			ErrInvalidKeyData, name, key.Name)
	}
	key.Name = name
	return nil
}

func keyNameWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	if key.Name == "" {
		return WriteOutcomeSkipped, nil
	}
	if strings.TrimSpace(node.Text()) != "" {
		return WriteOutcomeSkipped, nil
	}
	node.SetText(key.Name)
	return WriteOutcomeWrote, nil
}
