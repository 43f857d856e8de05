package manifest

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/spf13/viper"
)

// Keys of the uninstall properties resource
const (
	UninstallProductsKey   = "configurations"
	UninstallComponentsKey = "components"
)

// UninstallRequest lists the id_version tokens to remove
type UninstallRequest struct {
	Products   []string
	Components []string
}

// ReadUninstallRequest parses the properties-style uninstall resource. Each
// value is a comma and/or whitespace separated list of id_version tokens.
func ReadUninstallRequest(r io.Reader) (*UninstallRequest, error) {
	v := viper.New()
	v.SetConfigType("properties")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse uninstall properties: %w", err)
	}
	return &UninstallRequest{
		Products:   splitTokens(v.GetString(UninstallProductsKey)),
		Components: splitTokens(v.GetString(UninstallComponentsKey)),
	}, nil
}

func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
