package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

func init() {
	DefaultRegistry.Register(&Descriptor{
		ID:        "key-info-reference",
		Name:      "KeyInfoReference",
		Namespace: xmlenc.NamespaceXMLDSig11,
		Usage:     UsageReadFromKeyInfo | UsageWriteToKeyInfo,
		ReadXML:   keyInfoReferenceRead,
		WriteXML:  keyInfoReferenceWrite,
	})
}

func keyInfoReferenceRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	release, err := ctx.enterKeyInfoReference()
	if err != nil {
		return err
	}
	defer release()

	uri := node.SelectAttrValue("URI", "")
	if uri == "" {
		return fmt.Errorf("%w: <KeyInfoReference> requires a URI attribute", ErrInvalidAttribute)
	}
	if len(node.ChildElements()) > 0 {
		return fmt.Errorf("%w: <KeyInfoReference> must not have child elements", ErrUnexpectedNode)
	}

	tctx := ctx.keyInfoRefTransformCtx()
	if err := tctx.SetURI(uri, ctx.Document); err != nil {
		return err
	}
	buf, err := tctx.Execute()
	if err != nil {
		return err
	}
	if buf == nil || buf.Len() == 0 {
		return fmt.Errorf("%w: KeyInfoReference produced no data", ErrInvalidContent)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: KeyInfoReference result is not well-formed XML: %v", ErrInvalidContent, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "KeyInfo" || namespaceOf(root) != xmlenc.NamespaceXMLDSig {
		return fmt.Errorf("%w: KeyInfoReference must resolve to a <KeyInfo> element", ErrInvalidNode)
	}
	return Read(root, key, ctx)
}

func keyInfoReferenceWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	return WriteOutcomeSkipped, nil
}
