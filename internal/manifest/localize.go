package manifest

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/magiconair/properties"

	"github.com/criteo/install-registry/internal/fetch"
)

// BundleFile holds translations for the labels of the manifest next to it
const BundleFile = "install.properties"

// Localizer translates "%key" labels through install.properties bundles.
// Translation is cosmetic: a missing bundle or key keeps the label. Keys are
// matched exactly, case included, and dotted keys are flat.
type Localizer struct {
	opener fetch.Opener
	logger *slog.Logger

	mu      sync.Mutex
	bundles map[string]*properties.Properties
}

// NewLocalizer creates a localizer reading bundles through opener
func NewLocalizer(opener fetch.Opener, logger *slog.Logger) *Localizer {
	return &Localizer{
		opener:  opener,
		logger:  logger,
		bundles: make(map[string]*properties.Properties),
	}
}

// Translate returns label unchanged unless it starts with %, in which case
// the remainder is looked up in bundleBaseURL's install.properties
func (l *Localizer) Translate(ctx context.Context, bundleBaseURL, label string) string {
	if !strings.HasPrefix(label, "%") {
		return label
	}
	key := strings.TrimPrefix(label, "%")
	return l.Lookup(ctx, bundleBaseURL, key)
}

// Lookup returns the translation of key, or key itself
func (l *Localizer) Lookup(ctx context.Context, bundleBaseURL, key string) string {
	bundle := l.bundle(ctx, bundleBaseURL)
	if bundle == nil {
		return key
	}
	if value, ok := bundle.Get(key); ok {
		return value
	}
	return key
}

func (l *Localizer) bundle(ctx context.Context, baseURL string) *properties.Properties {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.bundles[baseURL]; ok {
		return b
	}

	var bundle *properties.Properties
	data, err := fetch.ReadAll(ctx, l.opener, fetch.Join(baseURL, BundleFile))
	if err == nil {
		// bundles are ISO 8859-1 with \u escapes; labels are taken verbatim
		loader := &properties.Loader{Encoding: properties.ISO_8859_1, DisableExpansion: true}
		if bundle, err = loader.LoadBytes(data); err != nil {
			l.logger.Warn("Label bundle unreadable",
				"bundle", baseURL,
				"error", err)
			bundle = nil
		}
	}
	l.bundles[baseURL] = bundle
	return bundle
}
