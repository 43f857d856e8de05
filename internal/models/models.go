package models

import (
	"github.com/criteo/install-registry/internal/version"
)

// Kind identifies the four kinds of installable units
type Kind string

const (
	KindProduct   Kind = "product"
	KindComponent Kind = "component"
	KindPlugin    Kind = "plugin"
	KindFragment  Kind = "fragment"
)

// Identified is implemented by every manifest entity
type Identified interface {
	UniqueID() string
}

// Versioned is implemented by every manifest entity
type Versioned interface {
	VersionID() version.Identifier
}

// Installable is a registry entry that can be installed or removed
type Installable interface {
	Identified
	Versioned
	Key() Key
	Kind() Kind
}

// URLEntry is a labelled update or discovery site
type URLEntry struct {
	URL   string `json:"url" yaml:"url"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// PluginEntry is a plugin carried by a component
type PluginEntry struct {
	ID          string             `json:"id" yaml:"id"`
	Label       string             `json:"label,omitempty" yaml:"label,omitempty"`
	Version     version.Identifier `json:"version" yaml:"version"`
	ComponentID string             `json:"component_id" yaml:"component_id"`
	Files       []string           `json:"files,omitempty" yaml:"files,omitempty"`
	InstallURL  string             `json:"install_url,omitempty" yaml:"install_url,omitempty"`
}

// Key returns the plugin's id_version key
func (p PluginEntry) Key() Key {
	return Key{ID: p.ID, Version: p.Version}
}

// FragmentEntry is a fragment carried by a component
type FragmentEntry struct {
	ID          string             `json:"id" yaml:"id"`
	Label       string             `json:"label,omitempty" yaml:"label,omitempty"`
	Version     version.Identifier `json:"version" yaml:"version"`
	ComponentID string             `json:"component_id" yaml:"component_id"`
	Files       []string           `json:"files,omitempty" yaml:"files,omitempty"`
	InstallURL  string             `json:"install_url,omitempty" yaml:"install_url,omitempty"`
}

// Key returns the fragment's id_version key
func (f FragmentEntry) Key() Key {
	return Key{ID: f.ID, Version: f.Version}
}

// ComponentEntry is the product-relative view of a component
type ComponentEntry struct {
	ID           string             `json:"id" yaml:"id"`
	Label        string             `json:"label,omitempty" yaml:"label,omitempty"`
	Version      version.Identifier `json:"version" yaml:"version"`
	AllowUpgrade bool               `json:"allow_upgrade" yaml:"allow_upgrade"`
	Optional     bool               `json:"optional" yaml:"optional"`
	Installed    bool               `json:"installed" yaml:"installed"`
	Product      Key                `json:"product" yaml:"product"` // owning product
}

// Key returns the referenced component's key
func (e *ComponentEntry) Key() Key {
	return Key{ID: e.ID, Version: e.Version}
}

// Product is a top-level configuration bundling components
type Product struct {
	ID            string             `json:"id" yaml:"id"`
	Label         string             `json:"label,omitempty" yaml:"label,omitempty"`
	Version       version.Identifier `json:"version" yaml:"version"`
	Vendor        string             `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Description   string             `json:"description,omitempty" yaml:"description,omitempty"`
	Application   string             `json:"application,omitempty" yaml:"application,omitempty"`
	AllowUpgrade  bool               `json:"allow_upgrade" yaml:"allow_upgrade"`
	UpdateURLs    []URLEntry         `json:"update_urls,omitempty" yaml:"update_urls,omitempty"`
	DiscoveryURLs []URLEntry         `json:"discovery_urls,omitempty" yaml:"discovery_urls,omitempty"`
	Entries       []*ComponentEntry  `json:"components" yaml:"components"`
	InstallURL    string             `json:"install_url,omitempty" yaml:"install_url,omitempty"` // manifest directory
}

func (p *Product) UniqueID() string              { return p.ID }
func (p *Product) VersionID() version.Identifier { return p.Version }
func (p *Product) Kind() Kind                    { return KindProduct }

// Key returns the product's id_version key
func (p *Product) Key() Key {
	return Key{ID: p.ID, Version: p.Version}
}

// Entry returns the entry referencing component id, or nil
func (p *Product) Entry(componentID string) *ComponentEntry {
	for _, e := range p.Entries {
		if e.ID == componentID {
			return e
		}
	}
	return nil
}

// References reports whether the product lists the exact component key
func (p *Product) References(k Key) bool {
	e := p.Entry(k.ID)
	return e != nil && e.Version.Equal(k.Version)
}

// Clone returns a deep copy
func (p *Product) Clone() *Product {
	c := *p
	c.UpdateURLs = append([]URLEntry(nil), p.UpdateURLs...)
	c.DiscoveryURLs = append([]URLEntry(nil), p.DiscoveryURLs...)
	c.Entries = make([]*ComponentEntry, len(p.Entries))
	for i, e := range p.Entries {
		entry := *e
		c.Entries[i] = &entry
	}
	return &c
}

// Component is a versioned unit bundling plugins and fragments
type Component struct {
	ID            string             `json:"id" yaml:"id"`
	Label         string             `json:"label,omitempty" yaml:"label,omitempty"`
	Version       version.Identifier `json:"version" yaml:"version"`
	Vendor        string             `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Description   string             `json:"description,omitempty" yaml:"description,omitempty"`
	UpdateURLs    []URLEntry         `json:"update_urls,omitempty" yaml:"update_urls,omitempty"`
	DiscoveryURLs []URLEntry         `json:"discovery_urls,omitempty" yaml:"discovery_urls,omitempty"`
	Plugins       []PluginEntry      `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	Fragments     []FragmentEntry    `json:"fragments,omitempty" yaml:"fragments,omitempty"`
	Loose         bool               `json:"loose,omitempty" yaml:"loose,omitempty"` // listed standalone in a remote registry
	InstallURL    string             `json:"install_url,omitempty" yaml:"install_url,omitempty"`
}

func (c *Component) UniqueID() string              { return c.ID }
func (c *Component) VersionID() version.Identifier { return c.Version }
func (c *Component) Kind() Kind                    { return KindComponent }

// Key returns the component's id_version key
func (c *Component) Key() Key {
	return Key{ID: c.ID, Version: c.Version}
}

// Contents returns the plugin and fragment keys carried by the component
func (c *Component) Contents() KeySet {
	var ks KeySet
	for _, p := range c.Plugins {
		ks.Plugins = append(ks.Plugins, p.Key())
	}
	for _, f := range c.Fragments {
		ks.Fragments = append(ks.Fragments, f.Key())
	}
	return ks
}

// Clone returns a deep copy
func (c *Component) Clone() *Component {
	cp := *c
	cp.UpdateURLs = append([]URLEntry(nil), c.UpdateURLs...)
	cp.DiscoveryURLs = append([]URLEntry(nil), c.DiscoveryURLs...)
	cp.Plugins = make([]PluginEntry, len(c.Plugins))
	for i, p := range c.Plugins {
		p.Files = append([]string(nil), p.Files...)
		cp.Plugins[i] = p
	}
	cp.Fragments = make([]FragmentEntry, len(c.Fragments))
	for i, f := range c.Fragments {
		f.Files = append([]string(nil), f.Files...)
		cp.Fragments[i] = f
	}
	return &cp
}

// Ref points at one registry entry
type Ref struct {
	Kind Kind `json:"kind"`
	Key  Key  `json:"key"`
}

func (r Ref) String() string {
	return string(r.Kind) + " " + r.Key.String()
}

// ActivationState is the persisted activation record document.
// All entries are id_version strings.
type ActivationState struct {
	Products    []string `json:"products"`
	Components  []string `json:"components"`
	Plugins     []string `json:"plugins"`
	Fragments   []string `json:"fragments"`
	Dangling    []string `json:"dangling"`
	Application string   `json:"application,omitempty"`
}

// NewActivationState creates an empty activation record document
func NewActivationState() *ActivationState {
	return &ActivationState{
		Products:   []string{},
		Components: []string{},
		Plugins:    []string{},
		Fragments:  []string{},
		Dangling:   []string{},
	}
}

// Normalize replaces nil lists with empty ones
func (s *ActivationState) Normalize() {
	if s.Products == nil {
		s.Products = []string{}
	}
	if s.Components == nil {
		s.Components = []string{}
	}
	if s.Plugins == nil {
		s.Plugins = []string{}
	}
	if s.Fragments == nil {
		s.Fragments = []string{}
	}
	if s.Dangling == nil {
		s.Dangling = []string{}
	}
}

// Clone returns a deep copy
func (s *ActivationState) Clone() *ActivationState {
	return &ActivationState{
		Products:    append([]string{}, s.Products...),
		Components:  append([]string{}, s.Components...),
		Plugins:     append([]string{}, s.Plugins...),
		Fragments:   append([]string{}, s.Fragments...),
		Dangling:    append([]string{}, s.Dangling...),
		Application: s.Application,
	}
}

// List returns a pointer to the list holding activations of the given kind
func (s *ActivationState) List(kind Kind) *[]string {
	switch kind {
	case KindProduct:
		return &s.Products
	case KindComponent:
		return &s.Components
	case KindPlugin:
		return &s.Plugins
	case KindFragment:
		return &s.Fragments
	default:
		return nil
	}
}
