// Package xmlsec dispatches the children of a W3C XML Signature/Encryption
// <KeyInfo> element to registered handlers, recursing through
// RetrievalMethod/KeyInfoReference indirection and EncryptedKey/DerivedKey/
// AgreementMethod cryptographic constructs until a key is found or every
// child has been tried.
package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
)

// Read walks the element children of keyInfoNode in document order,
// dispatching each to its registered handler and contributing to key.
// Unless FlagDontStopOnKeyFound is set, Read returns as soon as key holds
// a value matching ctx.KeyReq.
func Read(keyInfoNode *etree.Element, key *Key, ctx *KeyInfoContext) error {
	ctx.Operation = OperationRead
	for _, child := range keyInfoNode.ChildElements() {
		d, ok := ctx.registry().FindByNode(child.Tag, namespaceOf(child), UsageReadFromKeyInfo)
		if !ok {
			if ctx.Flags&FlagStopOnUnknownChild != 0 {
				return fmt.Errorf("%w: <%s> in KeyInfo", ErrUnexpectedNode, child.FullTag())
			}
			continue
		}
		if d.ReadXML == nil {
			continue
		}
		if err := d.ReadXML(key, child, ctx); err != nil {
			return fmt.Errorf("xmlsec: reading <%s>: %w", child.FullTag(), err)
		}
		if ctx.Flags&FlagDontStopOnKeyFound == 0 && ctx.KeyReq.Matches(key) {
			return nil
		}
	}
	return nil
}

// Write walks the element children of keyInfoNode, dispatching each to its
// registered handler so it can populate itself from key. Write never stops
// early; every recognized child gets a chance to write.
func Write(keyInfoNode *etree.Element, key *Key, ctx *KeyInfoContext) error {
	ctx.Operation = OperationWrite
	for _, child := range keyInfoNode.ChildElements() {
		d, ok := ctx.registry().FindByNode(child.Tag, namespaceOf(child), UsageWriteToKeyInfo)
		if !ok || d.WriteXML == nil {
			continue
		}
		if _, err := d.WriteXML(key, child, ctx); err != nil {
			return fmt.Errorf("xmlsec: writing <%s>: %w", child.FullTag(), err)
		}
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
