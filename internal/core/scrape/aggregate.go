package scrape

import (
	"regexp"
	"strings"

	"tokoscout/internal/core/result"
)

// item is one scraped listing plus the shop display name read off the card.
type item struct {
	product result.Product
	shop    string
}

// shopeeShopID pulls the numeric shop id out of shopee product links, which
// end in "-i.<shopid>.<itemid>".
var shopeeShopID = regexp.MustCompile(`-i\.(\d+)\.\d+`)

// shopSlug extracts the storefront identifier from a product link. Empty
// means the link does not identify a shop and the listing is skipped.
func shopSlug(link string, platform result.Platform) string {
	switch platform {
	case result.PlatformTokopedia:
		rest, ok := strings.CutPrefix(link, "https://www.tokopedia.com/")
		if !ok {
			return ""
		}
		slug, _, ok := strings.Cut(rest, "/")
		if !ok || slug == "" || strings.HasPrefix(slug, "search") {
			return ""
		}
		return slug
	case result.PlatformShopee:
		if m := shopeeShopID.FindStringSubmatch(link); m != nil {
			return m[1]
		}
		return ""
	}
	return ""
}

func shopURL(slug string, platform result.Platform) string {
	if platform == result.PlatformShopee {
		return "https://shopee.co.id/" + slug
	}
	return "https://www.tokopedia.com/" + slug
}

// aggregator folds one session's listings into per-shop result sets, one
// query at a time. Shops keep their discovery order; every known shop carries
// one QueryResult per processed query, empty when the query matched nothing
// there, so the console can tell "no matches" from "not reported yet".
type aggregator struct {
	platform result.Platform
	order    []string
	shops    map[string]*result.ShopResult
	queries  []string
}

func newAggregator(platform result.Platform) *aggregator {
	return &aggregator{platform: platform, shops: map[string]*result.ShopResult{}}
}

// addQuery folds one query's listings in and returns the amended ShopResults
// for every known shop, in discovery order. Publishing them all keeps the
// console's replace-in-place merge converging no matter the delivery order.
func (a *aggregator) addQuery(q string, items []item) []result.ShopResult {
	grouped := map[string][]result.Product{}
	for _, it := range items {
		slug := shopSlug(it.product.Link, a.platform)
		if slug == "" {
			continue
		}
		if _, seen := a.shops[slug]; !seen {
			a.order = append(a.order, slug)
			shop := &result.ShopResult{
				ShopURL:  shopURL(slug, a.platform),
				ShopName: slug,
				Platform: a.platform,
			}
			// Shops discovered by a later query still report the earlier
			// queries, just with zero matches.
			for _, prev := range a.queries {
				shop.Results = append(shop.Results, result.QueryResult{Query: prev, Products: []result.Product{}})
			}
			a.shops[slug] = shop
		}
		if it.shop != "" {
			a.shops[slug].ShopName = it.shop
		}
		grouped[slug] = append(grouped[slug], it.product)
	}

	a.queries = append(a.queries, q)
	out := make([]result.ShopResult, 0, len(a.order))
	for _, slug := range a.order {
		shop := a.shops[slug]
		products := grouped[slug]
		if products == nil {
			products = []result.Product{}
		}
		shop.Results = append(shop.Results, result.QueryResult{Query: q, Products: products})
		out = append(out, shop.Clone())
	}
	return out
}
