package scrape

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tokoscout/internal/core/result"
)

// PlatformSelectors describes how to read one marketplace's search results
// page. SearchURL is a fmt pattern with a single %s for the escaped query.
type PlatformSelectors struct {
	SearchURL string `yaml:"search_url"`
	Product   string `yaml:"product"`
	Name      string `yaml:"name"`
	Price     string `yaml:"price"`
	Link      string `yaml:"link"`
	Image     string `yaml:"image"`
	Shop      string `yaml:"shop"`
}

type Selectors map[result.Platform]PlatformSelectors

// DefaultSelectors covers the two supported marketplaces. Marketplace markup
// churns, so these can be overridden from a YAML file without a rebuild.
func DefaultSelectors() Selectors {
	return Selectors{
		result.PlatformTokopedia: {
			SearchURL: "https://www.tokopedia.com/search?q=%s",
			Product:   `div[data-ssr="contentProductsSRPSSR"] a`,
			Name:      "div:nth-child(1) > div:nth-child(2) > div:nth-child(1) span",
			Price:     "div > div:nth-child(2) > div:nth-child(2)",
			Image:     `img[alt="product-image"]`,
			Shop:      "span.flip",
		},
		result.PlatformShopee: {
			SearchURL: "https://shopee.co.id/search?keyword=%s",
			Product:   ".shopee-search-item-result__item a",
			Name:      ".text-shopee-primary .truncate",
			Price:     ".text-shopee-black54 .align-middle",
			Image:     `img[alt="product-image"], img[src*='simg']`,
			Shop:      ".shopee-search-item-result__shop",
		},
	}
}

// LoadSelectors merges YAML overrides on top of the defaults. An empty path
// or a missing file keeps the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return sel, nil
	}
	if err != nil {
		return nil, err
	}
	var overrides map[result.Platform]PlatformSelectors
	if err := yaml.Unmarshal(b, &overrides); err != nil {
		return nil, fmt.Errorf("parse selectors %s: %w", path, err)
	}
	for platform, ps := range overrides {
		sel[platform] = ps
	}
	return sel, nil
}
