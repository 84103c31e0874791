package result

// Set is the live result set of one scrape session: at most one ShopResult per
// shop_url, ordered by first arrival.
type Set []ShopResult

// Merge folds one incoming shop report into the set. A report for a shop that
// is already present replaces it at its existing position, so earlier shops
// never move; an unseen shop is appended. Applying the same report twice
// yields the same set as applying it once.
func Merge(set Set, incoming ShopResult) Set {
	out := make(Set, len(set))
	copy(out, set)
	for i := range out {
		if out[i].ShopURL == incoming.ShopURL {
			out[i] = incoming
			return out
		}
	}
	return append(out, incoming)
}

// Clone deep-copies the set. History snapshots rely on this so a live session
// can keep mutating without touching what was recorded.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for i, shop := range s {
		out[i] = shop.Clone()
	}
	return out
}

// ProductCount is the total number of products across every shop and query.
func (s Set) ProductCount() int {
	n := 0
	for _, shop := range s {
		for _, qr := range shop.Results {
			n += len(qr.Products)
		}
	}
	return n
}

// AllFound reports whether a shop returned at least one product for every
// query it has reported on. Display-only: it never drives merging.
func AllFound(shop ShopResult) bool {
	if len(shop.Results) == 0 {
		return false
	}
	for _, qr := range shop.Results {
		if len(qr.Products) == 0 {
			return false
		}
	}
	return true
}
