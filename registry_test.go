package xmlsec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryFindByNodeRequiresUsageOverlap(t *testing.T) {
	r := NewRegistry()
	r.Register(&Descriptor{
		ID:        "test-desc",
		Name:      "TestElement",
		Namespace: "urn:test",
		Usage:     UsageReadFromKeyValue,
	})

	_, ok := r.FindByNode("TestElement", "urn:test", UsageReadFromKeyValue)
	require.True(t, ok)

	_, ok = r.FindByNode("TestElement", "urn:test", UsageReadFromKeyInfo)
	require.False(t, ok, "descriptor registered for a different usage must not match")

	_, ok = r.FindByNode("Other", "urn:test", UsageReadFromKeyValue)
	require.False(t, ok)
}

func TestRegistrySubsetIsAnAllowList(t *testing.T) {
	sub := DefaultRegistry.Subset("key-name", "key-value")

	require.True(t, sub.Contains("key-name"))
	require.True(t, sub.Contains("key-value"))
	require.False(t, sub.Contains("retrieval-method"), "invariant 4: descriptors outside the subset are absent")
}

func TestRegistryFindByHrefAndByID(t *testing.T) {
	d, ok := DefaultRegistry.FindByHref("http://www.w3.org/2000/09/xmldsig#X509Data", UsageRetrievalMethodXML)
	require.True(t, ok)
	require.Equal(t, "x509-data", d.ID)

	require.NotNil(t, DefaultRegistry.FindByID("rsa-key-value"))
	require.Nil(t, DefaultRegistry.FindByID("does-not-exist"))
}
