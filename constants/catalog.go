package constants

import (
	"sort"
	"strings"
)

// UnknownModelCode is reported when a product name matches nothing in the catalog.
const UnknownModelCode = "S000"

// Product is one catalog entry: the name printed on receipts and its model code.
type Product struct {
	Name string
	Code string
}

var catalog = []Product{
	{Name: "OpenRun Pro 2", Code: "S820"},
	{Name: "OpenRun Pro", Code: "S810"},
	{Name: "OpenRun", Code: "S803"},
	{Name: "OpenSwim Pro", Code: "S710"},
	{Name: "OpenSwim", Code: "S700"},
	{Name: "OpenMove", Code: "S661"},
	{Name: "OpenFit Air", Code: "T511"},
	{Name: "OpenFit", Code: "T910"},
	{Name: "OpenComm 2", Code: "C120"},
	{Name: "OpenComm", Code: "C110"},
}

// matchOrder holds the catalog sorted longest name first so that
// "OpenRun Pro 2" is tried before "OpenRun Pro" and "OpenRun".
var matchOrder = func() []Product {
	out := make([]Product, len(catalog))
	copy(out, catalog)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Name) > len(out[j].Name) })
	return out
}()

// ProductNames returns the catalog names in display order.
func ProductNames() []string {
	names := make([]string, len(catalog))
	for i, p := range catalog {
		names[i] = p.Name
	}
	return names
}

// LookupModelCode finds the first catalog entry whose name occurs in product,
// ignoring case.
func LookupModelCode(product string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(product))
	if normalized == "" {
		return UnknownModelCode, false
	}
	for _, p := range matchOrder {
		if strings.Contains(normalized, strings.ToLower(p.Name)) {
			return p.Code, true
		}
	}
	return UnknownModelCode, false
}
