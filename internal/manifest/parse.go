// Package manifest reads install.xml manifests of products (configurations)
// and components into registry entities.
package manifest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrInvalidManifest is returned when a manifest cannot be turned into an entity
var ErrInvalidManifest = errors.New("invalid manifest")

// Root element names
const (
	RootComponent     = "component"
	RootConfiguration = "configuration"
)

// Document is the parse tree of one install.xml
type Document struct {
	XMLName      xml.Name
	ID           string    `xml:"id,attr"`
	Label        string    `xml:"label,attr"`
	Version      string    `xml:"version,attr"`
	Provider     string    `xml:"provider-name,attr"`
	Application  string    `xml:"application,attr"`
	AllowUpgrade string    `xml:"allowUpgrade,attr"`
	Description  string    `xml:"description"`
	URLs         []URLs    `xml:"url"`
	Plugins      []Element `xml:"plugin"`
	Fragments    []Element `xml:"fragment"`
	Components   []Element `xml:"component"`
}

// URLs holds the update and discovery sites of a manifest
type URLs struct {
	Update    []Site `xml:"update"`
	Discovery []Site `xml:"discovery"`
}

// Site is one labelled URL
type Site struct {
	URL   string `xml:"url,attr"`
	Label string `xml:"label,attr"`
}

// Element is a plugin, fragment or product component reference
type Element struct {
	ID           string `xml:"id,attr"`
	Label        string `xml:"label,attr"`
	Version      string `xml:"version,attr"`
	AllowUpgrade string `xml:"allowUpgrade,attr"`
	Optional     string `xml:"optional,attr"`
	Files        []File `xml:"file"`
}

// File lists a file shipped by a plugin or fragment
type File struct {
	Path string `xml:"path,attr"`
}

// Parse reads one manifest. The root must be component or configuration.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	switch doc.XMLName.Local {
	case RootComponent, RootConfiguration:
	default:
		return nil, fmt.Errorf("%w: unexpected root element %q", ErrInvalidManifest, doc.XMLName.Local)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return nil, fmt.Errorf("%w: missing id attribute", ErrInvalidManifest)
	}
	return &doc, nil
}

// IsProduct reports whether the root element is configuration
func (d *Document) IsProduct() bool {
	return d.XMLName.Local == RootConfiguration
}

// UpdateSites flattens every url/update child
func (d *Document) UpdateSites() []Site {
	var sites []Site
	for _, u := range d.URLs {
		sites = append(sites, u.Update...)
	}
	return sites
}

// DiscoverySites flattens every url/discovery child
func (d *Document) DiscoverySites() []Site {
	var sites []Site
	for _, u := range d.URLs {
		sites = append(sites, u.Discovery...)
	}
	return sites
}

// parseBool reads an attribute value, falling back to def when absent or
// malformed
func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}
