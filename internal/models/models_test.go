package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/criteo/install-registry/internal/version"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectedID  string
		expectedVer string
		wantError   bool
	}{
		{name: "simple", input: "org.eclipse.core_1.0.0", expectedID: "org.eclipse.core", expectedVer: "1.0.0"},
		{name: "qualifier", input: "org.eclipse.core_2.1.0.v2002", expectedID: "org.eclipse.core", expectedVer: "2.1.0.v2002"},
		{name: "underscore in id", input: "my_product_1.2", expectedID: "my_product", expectedVer: "1.2.0"},
		{name: "no separator", input: "org.eclipse.core", wantError: true},
		{name: "no id", input: "_1.0.0", wantError: true},
		{name: "no version", input: "org.eclipse.core_", wantError: true},
		{name: "bad version", input: "org.eclipse.core_abc", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseKey(tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidKey))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedID, k.ID)
			assert.Equal(t, tt.expectedVer, k.Version.String())
		})
	}
}

func TestKey_StringRoundTrip(t *testing.T) {
	k := NewKey("org.eclipse.ui", version.New(2, 0, 1, ""))
	assert.Equal(t, "org.eclipse.ui_2.0.1", k.String())

	parsed, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.True(t, k.Equal(parsed))
}

func TestKeySet(t *testing.T) {
	var ks KeySet
	assert.True(t, ks.Empty())

	a := NewKey("a", version.New(1, 0, 0, ""))
	ks.Add(KindComponent, a)
	ks.Add(KindPlugin, NewKey("p", version.New(1, 0, 0, "")))
	assert.False(t, ks.Empty())
	assert.True(t, ks.Contains(KindComponent, a))
	assert.False(t, ks.Contains(KindProduct, a))

	var other KeySet
	other.Add(KindFragment, NewKey("f", version.New(1, 0, 0, "")))
	ks.Merge(other)
	assert.Len(t, ks.Fragments, 1)
	assert.Equal(t, []string{"a_1.0.0"}, Strings(ks.Components))
}

func TestProduct_EntryAndClone(t *testing.T) {
	p := &Product{
		ID:      "prod",
		Version: version.New(1, 0, 0, ""),
		Entries: []*ComponentEntry{
			{ID: "comp", Version: version.New(1, 0, 0, ""), AllowUpgrade: true},
		},
		UpdateURLs: []URLEntry{{URL: "http://example.com/updates/"}},
	}

	assert.NotNil(t, p.Entry("comp"))
	assert.Nil(t, p.Entry("missing"))
	assert.True(t, p.References(NewKey("comp", version.New(1, 0, 0, ""))))
	assert.False(t, p.References(NewKey("comp", version.New(1, 0, 1, ""))))

	clone := p.Clone()
	clone.Entries[0].Installed = true
	clone.UpdateURLs[0].URL = "changed"
	assert.False(t, p.Entries[0].Installed)
	assert.Equal(t, "http://example.com/updates/", p.UpdateURLs[0].URL)
}

func TestComponent_ContentsAndClone(t *testing.T) {
	c := &Component{
		ID:        "comp",
		Version:   version.New(1, 0, 0, ""),
		Plugins:   []PluginEntry{{ID: "p1", Version: version.New(1, 0, 0, ""), Files: []string{"plugin.xml"}}},
		Fragments: []FragmentEntry{{ID: "f1", Version: version.New(1, 0, 0, "")}},
	}

	contents := c.Contents()
	assert.Equal(t, []string{"p1_1.0.0"}, Strings(contents.Plugins))
	assert.Equal(t, []string{"f1_1.0.0"}, Strings(contents.Fragments))

	clone := c.Clone()
	clone.Plugins[0].Files[0] = "changed"
	assert.Equal(t, "plugin.xml", c.Plugins[0].Files[0])
}

func TestActivationState(t *testing.T) {
	s := &ActivationState{}
	s.Normalize()
	assert.NotNil(t, s.Products)
	assert.NotNil(t, s.Dangling)

	*s.List(KindPlugin) = append(*s.List(KindPlugin), "p_1.0.0")
	clone := s.Clone()
	clone.Plugins[0] = "changed"
	assert.Equal(t, "p_1.0.0", s.Plugins[0])
	assert.Nil(t, s.List(Kind("unknown")))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("org.eclipse.core.runtime"))
	assert.NoError(t, ValidateID("my_component-2"))
	assert.Error(t, ValidateID(""))
	assert.Error(t, ValidateID(".leading"))
	assert.Error(t, ValidateID("has space"))
}

func TestValidateSiteURL(t *testing.T) {
	assert.NoError(t, ValidateSiteURL("http://example.com/site/"))
	assert.NoError(t, ValidateSiteURL("file:///opt/eclipse/"))
	assert.Error(t, ValidateSiteURL(""))
	assert.Error(t, ValidateSiteURL("ftp://example.com/"))
}

func TestValidateProduct_DuplicateEntry(t *testing.T) {
	p := &Product{
		ID: "prod",
		Entries: []*ComponentEntry{
			{ID: "comp", Version: version.New(1, 0, 0, "")},
			{ID: "comp", Version: version.New(1, 1, 0, "")},
		},
	}
	err := ValidateProduct(p)
	require.Error(t, err)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "component", vErr.Field)
}
