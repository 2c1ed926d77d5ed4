package xmlsec

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/beevik/etree"
	. "github.com/smartystreets/goconvey/convey"
)

func mustParseKeyInfo(xml string) *etree.Element {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		panic(err)
	}
	return doc.Root()
}

func TestKeyInfoReadUnknownChild(t *testing.T) {
	Convey("Given a <KeyInfo> with an unrecognized child", t, func() {
		node := mustParseKeyInfo(`<KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#"><Foo/></KeyInfo>`)

		Convey("When flags are clear (S1)", func() {
			ctx := NewKeyInfoContext(nil)
			var key Key
			err := Read(node, &key, ctx)

			Convey("Then it succeeds and leaves the key unchanged", func() {
				So(err, ShouldBeNil)
				So(key.IsValid(), ShouldBeFalse)
			})
		})

		Convey("When STOP_ON_UNKNOWN_CHILD is set (S2)", func() {
			ctx := NewKeyInfoContext(nil)
			ctx.Flags |= FlagStopOnUnknownChild
			var key Key
			err := Read(node, &key, ctx)

			Convey("Then it returns unexpected node", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrUnexpectedNode), ShouldBeTrue)
			})
		})
	})
}

func TestKeyNameContradiction(t *testing.T) {
	Convey("Given a key already named alice (S3)", t, func() {
		node := mustParseKeyInfo(`<KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#"><KeyName>bob</KeyName></KeyInfo>`)
		key := Key{Name: "alice", Value: []byte("some-value")}
		ctx := NewKeyInfoContext(nil)

		Convey("When Read encounters a contradicting KeyName with no manager", func() {
			err := Read(node, &key, ctx)

			Convey("Then it returns invalid key data", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrInvalidKeyData), ShouldBeTrue)
			})
		})
	})
}

func TestKeyNameContradictionWithoutValueOrManager(t *testing.T) {
	Convey("Given a key already named alice but with no value yet, and no keys manager", t, func() {
		node := mustParseKeyInfo(`<KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#"><KeyName>bob</KeyName></KeyInfo>`)
		key := Key{Name: "alice"}
		ctx := NewKeyInfoContext(nil)

		Convey("When Read encounters the contradicting KeyName", func() {
			err := Read(node, &key, ctx)

			Convey("Then it rejects the mismatch rather than silently renaming the key", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrInvalidKeyData), ShouldBeTrue)
				So(key.Name, ShouldEqual, "alice")
			})
		})
	})
}

func TestKeyNameEmpty(t *testing.T) {
	Convey("Given a <KeyName> with only whitespace content (S4)", t, func() {
		node := mustParseKeyInfo(`<KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#"><KeyName>   </KeyName></KeyInfo>`)
		var key Key
		ctx := NewKeyInfoContext(nil)

		Convey("When Read processes it", func() {
			err := Read(node, &key, ctx)

			Convey("Then it returns invalid content", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrInvalidContent), ShouldBeTrue)
			})
		})
	})
}

func TestRetrievalMethodLevelCap(t *testing.T) {
	Convey("Given a RetrievalMethod whose target is itself a RetrievalMethod (S5)", t, func() {
		const dsigNS = "http://www.w3.org/2000/09/xmldsig#"
		doc := etree.NewDocument()
		root := doc.CreateElement("Root")
		root.CreateAttr("xmlns", dsigNS)

		mid := root.CreateElement("RetrievalMethod")
		// mid is reached via same-document dereference, which copies this
		// subtree in isolation (losing inherited ancestor namespaces), so
		// it must carry its own xmlns rather than relying on Root's.
		mid.CreateAttr("xmlns", dsigNS)
		mid.CreateAttr("Id", "mid")
		mid.CreateAttr("URI", "#leaf")

		leaf := root.CreateElement("KeyName")
		leaf.CreateAttr("xmlns", dsigNS)
		leaf.CreateAttr("Id", "leaf")
		leaf.SetText("deeply-nested")

		ki := root.CreateElement("KeyInfo")
		outer := ki.CreateElement("RetrievalMethod")
		outer.CreateAttr("URI", "#mid")

		ctx := NewKeyInfoContext(nil)
		ctx.Document = doc
		ctx.MaxRetrievalMethodLevel = 1
		var key Key
		err := Read(ki, &key, ctx)

		Convey("Then the outer RetrievalMethod succeeds dereferencing, but the nested one hits the recursion cap", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrMaxLevelExceeded), ShouldBeTrue)
		})
	})
}

func TestKeyInfoReferenceMustResolveToKeyInfo(t *testing.T) {
	Convey("Given a KeyInfoReference whose URI resolves to a non-KeyInfo element (S6)", t, func() {
		doc := etree.NewDocument()
		root := doc.CreateElement("Root")
		other := root.CreateElement("Other")
		other.CreateAttr("xmlns", "http://www.w3.org/2000/09/xmldsig#")
		other.CreateAttr("Id", "x")

		ki := root.CreateElement("KeyInfo")
		kir := ki.CreateElement("KeyInfoReference")
		kir.CreateAttr("xmlns", "http://www.w3.org/2009/xmldsig11#")
		kir.CreateAttr("URI", "#x")

		ctx := NewKeyInfoContext(nil)
		ctx.Document = doc
		var key Key
		err := Read(ki, &key, ctx)

		Convey("Then it returns invalid node", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrInvalidNode), ShouldBeTrue)
		})
	})
}

func TestEncryptedKeySiblingFallthrough(t *testing.T) {
	Convey("Given two EncryptedKey siblings, neither of which decrypts (S7)", t, func() {
		node := mustParseKeyInfo(`<KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#">
			<xenc:EncryptedKey xmlns:xenc="http://www.w3.org/2001/04/xmlenc#"><xenc:CipherData><xenc:CipherValue>not-decryptable</xenc:CipherValue></xenc:CipherData></xenc:EncryptedKey>
			<xenc:EncryptedKey xmlns:xenc="http://www.w3.org/2001/04/xmlenc#"><xenc:CipherData><xenc:CipherValue>also-not-decryptable</xenc:CipherValue></xenc:CipherData></xenc:EncryptedKey>
		</KeyInfo>`)

		Convey("When ENCKEY_DONT_STOP_ON_FAILED_DECRYPTION is set", func() {
			ctx := NewKeyInfoContext(nil)
			ctx.Flags |= FlagEncKeyDontStopOnFailedDecryption
			var key Key
			err := Read(node, &key, ctx)

			Convey("Then Read completes without aborting at the first failure", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the flag is clear", func() {
			ctx := NewKeyInfoContext(nil)
			var key Key
			err := Read(node, &key, ctx)

			Convey("Then Read aborts at the first EncryptedKey", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestKeyValueExtraSibling(t *testing.T) {
	Convey("Given a <KeyValue> with more than one child (S8)", t, func() {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		So(err, ShouldBeNil)

		node := etree.NewElement("KeyValue")
		rsaElem := node.CreateElement("RSAKeyValue")
		_, err = rsaKeyValueWrite(&Key{Value: &priv.PublicKey}, rsaElem, NewKeyInfoContext(nil))
		So(err, ShouldBeNil)
		node.CreateElement("ExtraElt")

		var key Key
		readErr := keyValueRead(&key, node, NewKeyInfoContext(nil))

		Convey("Then it returns unexpected node", func() {
			So(readErr, ShouldNotBeNil)
			So(errors.Is(readErr, ErrUnexpectedNode), ShouldBeTrue)
		})
	})
}

func TestKeyNameRoundTrip(t *testing.T) {
	Convey("Given a key with name N and no value (round-trip 6)", t, func() {
		key := Key{Name: "N"}
		node := etree.NewElement("KeyInfo")
		node.CreateAttr("xmlns", "http://www.w3.org/2000/09/xmldsig#")
		node.CreateElement("KeyName")

		writeCtx := NewKeyInfoContext(nil)
		err := Write(node, &key, writeCtx)
		So(err, ShouldBeNil)

		Convey("When the written template is read back with a fresh key", func() {
			var readBack Key
			readErr := Read(node, &readBack, NewKeyInfoContext(nil))

			Convey("Then the name is restored", func() {
				So(readErr, ShouldBeNil)
				So(readBack.Name, ShouldEqual, "N")
			})
		})
	})
}

func TestKeyValueRoundTrip(t *testing.T) {
	Convey("Given an RSA key written through KeyValue (round-trip 7)", t, func() {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		So(err, ShouldBeNil)

		key := Key{DataID: "rsa-key-value", Value: &priv.PublicKey}
		node := etree.NewElement("KeyInfo")
		node.CreateAttr("xmlns", "http://www.w3.org/2000/09/xmldsig#")
		node.CreateElement("KeyValue")

		writeCtx := NewKeyInfoContext(nil)
		err = Write(node, &key, writeCtx)
		So(err, ShouldBeNil)

		Convey("When read back", func() {
			var readBack Key
			readErr := Read(node, &readBack, NewKeyInfoContext(nil))

			Convey("Then the recovered public key is equivalent", func() {
				So(readErr, ShouldBeNil)
				got, ok := readBack.Value.(*rsa.PublicKey)
				So(ok, ShouldBeTrue)
				So(got.E, ShouldEqual, priv.PublicKey.E)
				So(got.N.Cmp(priv.PublicKey.N), ShouldEqual, 0)
			})
		})
	})
}
