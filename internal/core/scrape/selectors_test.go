package scrape

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokoscout/internal/core/result"
)

func TestDefaultSelectors_CoverBothPlatforms(t *testing.T) {
	sel := DefaultSelectors()
	for _, platform := range []result.Platform{result.PlatformTokopedia, result.PlatformShopee} {
		ps, ok := sel[platform]
		require.True(t, ok, "missing selectors for %s", platform)
		assert.Contains(t, ps.SearchURL, "%s")
		assert.NotEmpty(t, ps.Product)
	}
}

func TestLoadSelectors_EmptyPathKeepsDefaults(t *testing.T) {
	sel, err := LoadSelectors("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSelectors(), sel)
}

func TestLoadSelectors_MissingFileKeepsDefaults(t *testing.T) {
	sel, err := LoadSelectors(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSelectors(), sel)
}

func TestLoadSelectors_OverridesMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	override := `tokopedia:
  search_url: "https://www.tokopedia.com/search?st=product&q=%s"
  product: "div.prd a"
  name: ".prd-name"
  price: ".prd-price"
  image: "img.prd-img"
  shop: ".prd-shop"
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	sel, err := LoadSelectors(path)
	require.NoError(t, err)

	assert.Equal(t, "div.prd a", sel[result.PlatformTokopedia].Product)
	// Platforms not mentioned in the file keep their defaults.
	assert.Equal(t, DefaultSelectors()[result.PlatformShopee], sel[result.PlatformShopee])
}

func TestLoadSelectors_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tokopedia: [not a mapping"), 0o644))

	_, err := LoadSelectors(path)
	assert.Error(t, err)
}
