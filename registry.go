package xmlsec

import (
	"sync"

	"github.com/beevik/etree"
)

// Usage is a bitmask describing which dispatch paths a Descriptor answers
// to. A single element type (e.g. X509Data) commonly answers to several:
// it can be read out of a KeyValue, written back into one, and also be the
// root of a RetrievalMethod result.
type Usage uint16

const (
	UsageReadFromKeyInfo Usage = 1 << iota
	UsageWriteToKeyInfo
	UsageReadFromKeyValue
	UsageWriteKeyValue
	UsageRetrievalMethodXML
	UsageRetrievalMethodBinary
)

// WriteOutcome distinguishes "nothing to write" from a handler error,
// letting a Write caller tell apart a key with no name/value from one
// that failed to serialize.
type WriteOutcome int

const (
	WriteOutcomeWrote WriteOutcome = iota
	WriteOutcomeSkipped
)

type (
	// XMLReader consumes an XML element and contributes to key.
	XMLReader func(key *Key, node *etree.Element, ctx *KeyInfoContext) error
	// XMLWriter populates node from key.
	XMLWriter func(key *Key, node *etree.Element, ctx *KeyInfoContext) (WriteOutcome, error)
	// BinaryReader interprets raw bytes (e.g. from a decrypted EncryptedKey)
	// as key material.
	BinaryReader func(key *Key, data []byte, ctx *KeyInfoContext) error
	// BinaryWriter serializes key to raw bytes for binary transport.
	BinaryWriter func(key *Key, ctx *KeyInfoContext) ([]byte, error)
)

// Descriptor is a key-data registration: the element it recognizes (by
// local name + namespace), the href it answers to when looked up by a
// RetrievalMethod Type attribute, and the callbacks that
// do the actual reading/writing.
type Descriptor struct {
	ID        string
	Name      string
	Namespace string
	Href      string
	Usage     Usage

	ReadXML     XMLReader
	WriteXML    XMLWriter
	ReadBinary  BinaryReader
	WriteBinary BinaryWriter
}

type nodeKey struct{ name, ns string }

// Registry maps (name, namespace) and href to Descriptors. The zero value
// is not usable; use NewRegistry. DefaultRegistry is seeded at init time
// with the built-in handlers.
type Registry struct {
	mu     sync.RWMutex
	byNode map[nodeKey]*Descriptor
	byHref map[string]*Descriptor
	byID   map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		byNode: make(map[nodeKey]*Descriptor),
		byHref: make(map[string]*Descriptor),
		byID:   make(map[string]*Descriptor),
	}
}

// DefaultRegistry is the process-wide registry the built-in handlers
// register themselves into. A KeyInfoContext falls back to it whenever
// EnabledKeyData is unset.
var DefaultRegistry = NewRegistry()

// Register adds or replaces d under its ID, and under its (Name,
// Namespace)/Href keys if set.
func (r *Registry) Register(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Name != "" {
		r.byNode[nodeKey{d.Name, d.Namespace}] = d
	}
	if d.Href != "" {
		r.byHref[d.Href] = d
	}
	r.byID[d.ID] = d
}

// FindByNode resolves a descriptor by element identity, requiring at least
// one bit of usage to overlap.
func (r *Registry) FindByNode(name, ns string, usage Usage) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byNode[nodeKey{name, ns}]
	if !ok || d.Usage&usage == 0 {
		return nil, false
	}
	return d, true
}

// FindByHref resolves a descriptor by its Type/href identifier.
func (r *Registry) FindByHref(href string, usage Usage) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byHref[href]
	if !ok || d.Usage&usage == 0 {
		return nil, false
	}
	return d, true
}

// FindByID looks up a descriptor by its stable ID, ignoring Usage.
func (r *Registry) FindByID(id string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Contains reports whether a descriptor with this ID is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// Subset builds a new Registry containing only the named descriptors, for
// use as a KeyInfoContext.EnabledKeyData allow-list.
func (r *Registry) Subset(ids ...string) *Registry {
	sub := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range ids {
		if d, ok := r.byID[id]; ok {
			sub.Register(d)
		}
	}
	return sub
}

// Clone returns a new Registry holding every descriptor r currently holds.
// The two registries own independent maps from that point on: registering
// or removing entries in the clone never affects r, and vice versa. Cloned
// Descriptors themselves are shared by pointer, since this module treats a
// Descriptor as immutable once registered.
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.byID {
		clone.Register(d)
	}
	return clone
}

func namespaceOf(e *etree.Element) string {
	return e.NamespaceURI()
}
