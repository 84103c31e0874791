package session

import "fmt"

// ViewState tracks which shop and shop/query groups are expanded in the
// console. Purely transient: it is never persisted, and it is reset whenever
// a new result set is loaded so indices from a differently-shaped previous
// session cannot point at the wrong group.
type ViewState struct {
	shops   map[int]bool
	queries map[string]bool
}

func NewViewState() *ViewState {
	return &ViewState{shops: map[int]bool{}, queries: map[string]bool{}}
}

func queryKey(shop, query int) string { return fmt.Sprintf("%d:%d", shop, query) }

// ToggleShop flips the expansion flag for one shop group. Unseen indices
// start collapsed.
func (v *ViewState) ToggleShop(shop int) {
	v.shops[shop] = !v.shops[shop]
}

// ToggleQuery flips the expansion flag for one query group within a shop.
func (v *ViewState) ToggleQuery(shop, query int) {
	k := queryKey(shop, query)
	v.queries[k] = !v.queries[k]
}

func (v *ViewState) ShopExpanded(shop int) bool { return v.shops[shop] }

func (v *ViewState) QueryExpanded(shop, query int) bool {
	return v.queries[queryKey(shop, query)]
}

// Reset collapses everything.
func (v *ViewState) Reset() {
	v.shops = map[int]bool{}
	v.queries = map[string]bool{}
}

func (v *ViewState) snapshot() (map[int]bool, map[string]bool) {
	shops := make(map[int]bool, len(v.shops))
	for k, b := range v.shops {
		shops[k] = b
	}
	queries := make(map[string]bool, len(v.queries))
	for k, b := range v.queries {
		queries[k] = b
	}
	return shops, queries
}
