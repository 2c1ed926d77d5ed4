package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec/xmlenc"
)

func init() {
	DefaultRegistry.Register(&Descriptor{
		ID:        "retrieval-method",
		Name:      "RetrievalMethod",
		Namespace: xmlenc.NamespaceXMLDSig,
		Usage:     UsageReadFromKeyInfo | UsageWriteToKeyInfo | UsageRetrievalMethodXML,
		ReadXML:   retrievalMethodRead,
		WriteXML:  retrievalMethodWrite,
	})
}

func retrievalMethodRead(key *Key, node *etree.Element, ctx *KeyInfoContext) error {
	release, err := ctx.enterRetrievalMethod()
	if err != nil {
		return err
	}
	defer release()

	typ := node.SelectAttrValue("Type", "")
	var descriptor *Descriptor
	if typ != "" {
		d, ok := ctx.registry().FindByHref(typ, UsageRetrievalMethodXML|UsageRetrievalMethodBinary)
		if !ok {
			if ctx.Flags&FlagRetrMethodStopOnUnknownHref != 0 {
				return fmt.Errorf("%w: unresolved RetrievalMethod Type %q", ErrInvalidAttribute, typ)
			}
			return nil
		}
		descriptor = d
	}

	tctx := ctx.retrievalTransformCtx()
	if err := tctx.SetURI(node.SelectAttrValue("URI", ""), ctx.Document); err != nil {
		return err
	}

	children := node.ChildElements()
	switch {
	case len(children) == 1 && children[0].Tag == "Transforms":
		if err := tctx.ParseTransforms(children[0], TransformUsageDSig); err != nil {
			return err
		}
	case len(children) > 0:
		return fmt.Errorf("%w: unexpected child of <RetrievalMethod>", ErrUnexpectedNode)
	}

	buf, err := tctx.Execute()
	if err != nil {
		return err
	}
	if buf == nil || buf.Len() == 0 {
		return fmt.Errorf("%w: RetrievalMethod produced no data", ErrInvalidContent)
	}

	if descriptor == nil || descriptor.Usage&UsageRetrievalMethodXML != 0 {
		return retrievalMethodReadXMLResult(key, buf.Bytes(), descriptor, ctx)
	}
	if descriptor.ReadBinary == nil {
		return nil
	}
	return descriptor.ReadBinary(key, buf.Bytes(), ctx)
}

func retrievalMethodReadXMLResult(key *Key, data []byte, declared *Descriptor, ctx *KeyInfoContext) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		if ctx.Flags&FlagKeyValueStopOnUnknownChild != 0 {
			return fmt.Errorf("%w: RetrievalMethod result is not well-formed XML: %v", ErrInvalidContent, err)
		}
		return nil
	}
	root := doc.Root()
	if root == nil {
		return nil
	}

	resolved, ok := ctx.registry().FindByNode(root.Tag, namespaceOf(root), UsageRetrievalMethodXML)
	if !ok {
		if ctx.Flags&FlagKeyValueStopOnUnknownChild != 0 {
			return fmt.Errorf("%w: <%s> as RetrievalMethod result", ErrUnexpectedNode, root.FullTag())
		}
		return nil
	}
	if declared != nil && ctx.Flags&FlagRetrMethodStopOnMismatchHref != 0 && resolved.ID != declared.ID {
		return fmt.Errorf("%w: RetrievalMethod result does not match declared Type", ErrTypeMismatch)
	}
	if resolved.ReadXML == nil {
		return nil
	}
	return resolved.ReadXML(key, root, ctx)
}

func retrievalMethodWrite(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error) {
	return WriteOutcomeSkipped, nil
}
