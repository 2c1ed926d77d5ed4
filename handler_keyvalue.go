package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

func init() {
	DefaultRegistry.Register(&Descriptor{
		ID:        "key-value",
		Name:      "KeyValue",
		Namespace: xmlenc.NamespaceXMLDSig,
		Usage:     UsageReadFromKeyInfo | UsageWriteToKeyInfo,
		ReadXML:   keyValueRead,
		WriteXML:  keyValueWrite,
	})
}

func keyValueRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	children := node.ChildElements()
	if len(children) == 0 {
		return nil
	}
	first := children[0]

	d, ok := ctx.registry().FindByNode(first.Tag, namespaceOf(first), UsageReadFromKeyValue)
	if !ok {
		if ctx.Flags&FlagKeyValueStopOnUnknownChild != 0 {
			return fmt.Errorf("%w: <%s> in KeyValue", ErrUnexpectedNode, first.FullTag())
		}
	} else if d.ReadXML != nil {
		if err := d.ReadXML(key, first, ctx); err != nil {
			return err
		}
	}

	if len(children) > 1 {
		return fmt.Errorf("%w: <KeyValue> has more than one child element", ErrUnexpectedNode)
	}
	return nil
}

func keyValueWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	if !key.IsValid() {
		return WriteOutcomeSkipped, nil
	}
	d := ctx.registry().FindByID(key.DataID)
	if d == nil || d.Usage&UsageWriteKeyValue == 0 {
		return WriteOutcomeSkipped, nil
	}
	if !ctx.registry().Contains(d.ID) {
		return WriteOutcomeSkipped, nil
	}
	if !ctx.KeyReq.Matches(key) {
		return WriteOutcomeSkipped, nil
	}

	for _, c := range node.ChildElements() {
		node.RemoveChild(c)
	}
	child := node.CreateElement(d.Name)
	if d.Namespace != "" {
		child.CreateAttr("xmlns", d.Namespace)
	}
	if d.WriteXML == nil {
		return WriteOutcomeSkipped, nil
	}
	if _, err := d.WriteXML(key, child, ctx); err != nil {
		return WriteOutcomeWrote, err
	}
	return WriteOutcomeWrote, nil
}
