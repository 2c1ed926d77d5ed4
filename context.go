package xmlsec

import (
	"fmt"

	"github.com/beevik/etree"
)

// Flags control the dispatch engine's leniency and stop-on-found behavior.
// All flags default clear: Read stops at the first matching key, unknown
// children and unresolved Type hrefs are skipped, and a failing
// EncryptedKey/DerivedKey/AgreementMethod aborts the Read.
type Flags uint32

const (
	// FlagDontStopOnKeyFound keeps Read iterating siblings even after a
	// matching key has been found.
	FlagDontStopOnKeyFound Flags = 1 << iota
	// FlagStopOnUnknownChild makes an unrecognized top-level KeyInfo child fatal.
	FlagStopOnUnknownChild
	// FlagKeyValueStopOnUnknownChild makes an unrecognized KeyValue child,
	// or an unrecognized or malformed RetrievalMethod XML result, fatal.
	FlagKeyValueStopOnUnknownChild
	// FlagRetrMethodStopOnUnknownHref makes an unresolved RetrievalMethod
	// Type attribute fatal instead of silently skipped.
	FlagRetrMethodStopOnUnknownHref
	// FlagRetrMethodStopOnMismatchHref requires a RetrievalMethod XML
	// result's root element to match the advertised Type.
	FlagRetrMethodStopOnMismatchHref
	// FlagEncKeyDontStopOnFailedDecryption swallows a failing
	// EncryptedKey/DerivedKey/AgreementMethod so siblings get a chance;
	// when clear, such a failure aborts the whole Read.
	FlagEncKeyDontStopOnFailedDecryption
)

// Operation records which of Read/Write is currently driving the context.
type Operation int

const (
	OperationRead Operation = iota
	OperationWrite
)

// KeyInfoContext carries both the caller's standing preferences (copied
// into any sub-contexts this run spawns) and the per-run recursion state.
// A context is not safe for concurrent use; create one per Read/Write call.
type KeyInfoContext struct {
	// --- user preferences: copied verbatim by CopyUserPref ---

	Flags                    Flags
	EnabledKeyData           *Registry
	KeyReq                   KeyReq
	Base64LineSize           int
	MaxRetrievalMethodLevel  int
	MaxKeyInfoReferenceLevel int
	MaxEncryptedKeyLevel     int
	CertsVerificationDepth   int
	KeysMngr                 *KeysManager
	// Document is the owning document of the KeyInfo node being processed,
	// used to resolve same-document ("#id") RetrievalMethod/KeyInfoReference
	// URIs. Callers must set it before calling Read/Write.
	Document *etree.Document

	// --- per-run state ---

	Operation Operation

	curRetrievalMethodLevel  int
	curKeyInfoReferenceLevel int
	curEncryptedKeyLevel     int

	retrievalMethodCtx  *TransformContext
	keyInfoReferenceCtx *TransformContext
	encCtx              *EncContext
}

// NewKeyInfoContext returns a context with the documented defaults
// (recursion caps of 1, a certificate verification depth of 9) bound to
// the given keys manager.
func NewKeyInfoContext(mngr *KeysManager) *KeyInfoContext {
	return &KeyInfoContext{
		MaxRetrievalMethodLevel:  1,
		MaxKeyInfoReferenceLevel: 1,
		MaxEncryptedKeyLevel:     1,
		CertsVerificationDepth:   9,
		KeysMngr:                 mngr,
	}
}

// Reset clears per-run state so the context can drive another Read/Write,
// while leaving every user preference untouched.
func (c *KeyInfoContext) Reset() {
	c.Operation = OperationRead
	c.curRetrievalMethodLevel = 0
	c.curKeyInfoReferenceLevel = 0
	c.curEncryptedKeyLevel = 0
	if c.retrievalMethodCtx != nil {
		c.retrievalMethodCtx.Reset()
	}
	if c.keyInfoReferenceCtx != nil {
		c.keyInfoReferenceCtx.Reset()
	}
	if c.encCtx != nil {
		c.encCtx.Reset()
	}
}

// CopyUserPref copies only the user-preference fields into dst, leaving
// dst's per-run state (recursion counters, sub-contexts) alone. This is
// how a context seeds the contexts it spawns (an EncContext's inner
// read/write contexts, or the temporary context an EncryptedKey write
// serializes through). RetrievalMethod and KeyInfoReference results are
// read with the same context, not a copy.
func (c *KeyInfoContext) CopyUserPref(dst *KeyInfoContext) {
	dst.Flags = c.Flags
	if c.EnabledKeyData != nil {
		dst.EnabledKeyData = c.EnabledKeyData.Clone()
	} else {
		dst.EnabledKeyData = nil
	}
	dst.KeyReq = c.KeyReq
	dst.Base64LineSize = c.Base64LineSize
	dst.MaxRetrievalMethodLevel = c.MaxRetrievalMethodLevel
	dst.MaxKeyInfoReferenceLevel = c.MaxKeyInfoReferenceLevel
	dst.MaxEncryptedKeyLevel = c.MaxEncryptedKeyLevel
	dst.CertsVerificationDepth = c.CertsVerificationDepth
	dst.KeysMngr = c.KeysMngr
	dst.Document = c.Document
}

func (c *KeyInfoContext) registry() *Registry {
	if c.EnabledKeyData != nil {
		return c.EnabledKeyData
	}
	return DefaultRegistry
}

// enterRetrievalMethod enforces and bumps curRetrievalMethodLevel, returning
// a release func that must be deferred immediately so the counter is
// decremented on every return path.
func (c *KeyInfoContext) enterRetrievalMethod() (func(), error) {
	if c.curRetrievalMethodLevel >= c.MaxRetrievalMethodLevel {
		return nil, fmt.Errorf("%w: RetrievalMethod recursion limit (%d) reached",
			ErrMaxLevelExceeded, c.MaxRetrievalMethodLevel)
	}
	c.curRetrievalMethodLevel++
	return func() { c.curRetrievalMethodLevel-- }, nil
}

func (c *KeyInfoContext) enterKeyInfoReference() (func(), error) {
	if c.curKeyInfoReferenceLevel >= c.MaxKeyInfoReferenceLevel {
		return nil, fmt.Errorf("%w: KeyInfoReference recursion limit (%d) reached",
			ErrMaxLevelExceeded, c.MaxKeyInfoReferenceLevel)
	}
	c.curKeyInfoReferenceLevel++
	return func() { c.curKeyInfoReferenceLevel-- }, nil
}

// enterEncryptedKeyLevel is shared by EncryptedKey, DerivedKey and
// AgreementMethod, matching the upstream design where all three draw down
// the same recursion budget.
func (c *KeyInfoContext) enterEncryptedKeyLevel() (func(), error) {
	if c.curEncryptedKeyLevel >= c.MaxEncryptedKeyLevel {
		return nil, fmt.Errorf("%w: EncryptedKey/DerivedKey/AgreementMethod recursion limit (%d) reached",
			ErrMaxLevelExceeded, c.MaxEncryptedKeyLevel)
	}
	c.curEncryptedKeyLevel++
	return func() { c.curEncryptedKeyLevel-- }, nil
}

func (c *KeyInfoContext) retrievalTransformCtx() *TransformContext {
	if c.retrievalMethodCtx == nil {
		c.retrievalMethodCtx = NewTransformContext()
	}
	c.retrievalMethodCtx.Reset()
	return c.retrievalMethodCtx
}

func (c *KeyInfoContext) keyInfoRefTransformCtx() *TransformContext {
	if c.keyInfoReferenceCtx == nil {
		c.keyInfoReferenceCtx = NewTransformContext()
	}
	c.keyInfoReferenceCtx.Reset()
	return c.keyInfoReferenceCtx
}

// ensureEncCtx lazily creates (or resets) the encryption context, keeping
// its inner read/write KeyInfoContexts in sync with this context's current
// user preferences.
func (c *KeyInfoContext) ensureEncCtx() *EncContext {
	if c.encCtx == nil {
		c.encCtx = NewEncContext(c.KeysMngr)
	} else {
		c.encCtx.Reset()
	}
	c.CopyUserPref(c.encCtx.KeyInfoReadCtx)
	c.encCtx.KeyInfoReadCtx.Operation = OperationRead
	c.CopyUserPref(c.encCtx.KeyInfoWriteCtx)
	c.encCtx.KeyInfoWriteCtx.Operation = OperationWrite
	return c.encCtx
}
