package result

import "fmt"

// Platform identifies which marketplace a shop belongs to.
type Platform string

const (
	PlatformTokopedia Platform = "tokopedia"
	PlatformShopee    Platform = "shopee"
)

func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformTokopedia, PlatformShopee:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unsupported platform: %q", s)
}

// Product is one scraped listing. Link is the only field guaranteed to be set;
// image may arrive under different field names depending on the page layout the
// scraper hit, so the alternates are kept verbatim and resolved at render time.
type Product struct {
	Name  string `json:"name,omitempty"`
	Price string `json:"price,omitempty"`
	Link  string `json:"link"`
	Image string `json:"image,omitempty"`

	// Alternate image sources, in fallback order after Image.
	Photo     string `json:"photo,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// imageSources is the ordered fallback list for DisplayImage.
var imageSources = []func(Product) string{
	func(p Product) string { return p.Image },
	func(p Product) string { return p.Photo },
	func(p Product) string { return p.Thumbnail },
	func(p Product) string { return p.ImageURL },
}

// DisplayImage returns the first non-empty image source, or "" when the
// listing carried no usable image at all.
func (p Product) DisplayImage() string {
	for _, src := range imageSources {
		if v := src(p); v != "" {
			return v
		}
	}
	return ""
}

// DisplayName falls back to the link when the listing had no readable title.
func (p Product) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Link
}

// QueryResult holds the products one shop returned for one query. An empty
// Products slice means the query matched nothing in this shop, which is
// distinct from the query not having been reported yet.
type QueryResult struct {
	Query    string    `json:"query"`
	Products []Product `json:"products"`
}

// ShopResult groups everything reported for one storefront. ShopURL is the
// identity key within a session.
type ShopResult struct {
	ShopURL  string        `json:"shop_url"`
	ShopName string        `json:"shop_name"`
	Platform Platform      `json:"platform"`
	Results  []QueryResult `json:"results"`
}

// Clone deep-copies the shop result so callers can hold it across later merges.
func (r ShopResult) Clone() ShopResult {
	out := r
	out.Results = make([]QueryResult, len(r.Results))
	for i, qr := range r.Results {
		cp := qr
		cp.Products = append([]Product(nil), qr.Products...)
		out.Results[i] = cp
	}
	return out
}
