package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nordlys/bugsight/internal/parser/dumpsys"
)

// Rules is the optional vendor rules overlay. It extends the built-in
// OEM/BSP classification tables for fleets whose vendor namespaces the
// defaults do not know.
type Rules struct {
	// BSPVendorPrefixes adds namespace segments treated as BSP-bundled.
	BSPVendorPrefixes []string `yaml:"bsp_vendor_prefixes"`

	// ManufacturerAliases maps reported manufacturer strings to the
	// canonical name used in vendor namespaces, e.g. "OnePlus" -> "oneplus".
	ManufacturerAliases map[string]string `yaml:"manufacturer_aliases"`
}

// LoadRules reads a rules overlay file. A missing file is not an error;
// it returns empty rules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Rules{}, nil
		}
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return &r, nil
}

// Apply installs the overlay into the classifier tables. Call once at
// startup, before any analysis runs.
func (r *Rules) Apply() {
	if len(r.BSPVendorPrefixes) > 0 {
		dumpsys.AddBSPVendorPrefixes(r.BSPVendorPrefixes...)
	}
}

// CanonicalManufacturer resolves a reported manufacturer through the
// alias table. Lookup is case-insensitive; unknown names pass through.
func (r *Rules) CanonicalManufacturer(manufacturer string) string {
	for alias, canonical := range r.ManufacturerAliases {
		if strings.EqualFold(alias, manufacturer) {
			return canonical
		}
	}
	return manufacturer
}
