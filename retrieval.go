package xmlsec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// TransformUsage distinguishes the Transforms lists this module knows how
// to parse. Only DSig transforms are supported today.
type TransformUsage int

const (
	TransformUsageDSig TransformUsage = iota
)

const transformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

// TransformContext resolves a same-document URI against ctx.Document and
// applies a Transforms list to the element it finds, producing the byte
// buffer RetrievalMethod/KeyInfoReference dereference.
//
// Only same-document ("#id") URIs are supported; there is no network or
// filesystem dereferencing. Only the enveloped-signature transform is
// applied structurally — remaining transforms (including canonicalization)
// fall through to etree's own deterministic serialization. Full
// Exclusive-C14N per RFC 3741 is out of scope for this pipeline.
type TransformContext struct {
	node       *etree.Element
	transforms []string
}

func NewTransformContext() *TransformContext {
	return &TransformContext{}
}

func (t *TransformContext) Reset() {
	t.node = nil
	t.transforms = nil
}

// SetURI resolves uri (must be of the form "#id") against doc's Id/ID
// attributes.
func (t *TransformContext) SetURI(uri string, doc *etree.Document) error {
	uri = strings.TrimSpace(uri)
	if uri == "" || uri == "#" {
		return fmt.Errorf("%w: empty same-document URI is not supported", ErrInvalidAttribute)
	}
	if !strings.HasPrefix(uri, "#") {
		return fmt.Errorf("%w: only same-document (#id) URIs are supported: %q", ErrInvalidAttribute, uri)
	}
	if doc == nil {
		return fmt.Errorf("%w: no owning document set on context", ErrInvalidNode)
	}
	id := uri[1:]
	target := findElementByID(doc.Root(), id)
	if target == nil {
		return fmt.Errorf("%w: no element with Id/ID %q", ErrInvalidAttribute, id)
	}
	t.node = target
	return nil
}

// ParseTransforms records the Algorithm URIs of transformsNode's Transform
// children, in order.
func (t *TransformContext) ParseTransforms(transformsNode *etree.Element, usage TransformUsage) error {
	t.transforms = nil
	for _, tr := range transformsNode.SelectElements("Transform") {
		alg := tr.SelectAttrValue("Algorithm", "")
		if alg == "" {
			return fmt.Errorf("%w: <Transform> missing Algorithm attribute", ErrInvalidAttribute)
		}
		t.transforms = append(t.transforms, alg)
	}
	return nil
}

// Execute applies the recorded transforms to the resolved node and returns
// the serialized result.
func (t *TransformContext) Execute() (*bytes.Buffer, error) {
	if t.node == nil {
		return nil, fmt.Errorf("%w: transform context has no resolved target", ErrInvalidNode)
	}
	work := t.node.Copy()
	for _, alg := range t.transforms {
		if alg == transformEnveloped {
			if sig := work.FindElement(".//Signature"); sig != nil && sig.Parent() != nil {
				sig.Parent().RemoveChild(sig)
			}
		}
		// Canonicalization transforms are not applied separately: etree
		// already serializes deterministically for this pipeline's purposes.
	}
	doc := etree.NewDocument()
	doc.SetRoot(work)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xmlsec: serializing transform result: %w", err)
	}
	return bytes.NewBuffer(out), nil
}

func findElementByID(root *etree.Element, id string) *etree.Element {
	if root == nil {
		return nil
	}
	if v := root.SelectAttrValue("Id", ""); v == id {
		return root
	}
	if v := root.SelectAttrValue("ID", ""); v == id {
		return root
	}
	for _, c := range root.ChildElements() {
		if found := findElementByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
