// Command keyinforead resolves the key material described by a <KeyInfo>
// element in a standalone XML document, printing a short summary of what
// was found.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/hendrikdonner/xmlsec"
)

// namedKeyList accumulates repeated -key flags, each of the form name=base64.
type namedKeyList []string

func (l *namedKeyList) String() string { return strings.Join(*l, ",") }

func (l *namedKeyList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	path := flag.String("file", "", "path to an XML document containing a <KeyInfo> element")
	var keys namedKeyList
	flag.Var(&keys, "key", "symmetric key to preload into the keys manager, as name=base64 (repeatable)")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: keyinforead -file keyinfo.xml [-key name=base64 ...]")
		os.Exit(2)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(*path); err != nil {
		log.Fatalf("reading %s: %v", *path, err)
	}

	root := doc.Root()
	if root == nil {
		log.Fatalf("%s: empty document", *path)
	}
	keyInfoNode := root
	if root.Tag != "KeyInfo" {
		keyInfoNode = root.FindElement(".//KeyInfo")
		if keyInfoNode == nil {
			log.Fatalf("%s: no <KeyInfo> element found", *path)
		}
	}

	mngr := xmlsec.NewKeysManager()
	for _, spec := range keys {
		name, b64, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			log.Fatalf("invalid -key %q: expected name=base64", spec)
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			log.Fatalf("invalid -key %q: %v", spec, err)
		}
		mngr.AddKey(name, &xmlsec.Key{Name: name, Value: raw})
	}

	ctx := xmlsec.NewKeyInfoContext(mngr)
	ctx.Document = doc

	var key xmlsec.Key
	if err := xmlsec.Read(keyInfoNode, &key, ctx); err != nil {
		log.Fatalf("resolving KeyInfo: %v", err)
	}

	if !key.IsValid() {
		fmt.Println("no key material resolved")
		return
	}
	fmt.Printf("resolved key %q (descriptor=%s, bits=%d, certs=%d)\n",
		key.Name, key.DataID, key.Bitsize(), len(key.Certificates))
}
