package reference

import "strings"

// Resolve returns the id of the first item whose name equals name exactly
// (case-sensitive). Blank or unmatched names resolve to Unresolved.
func Resolve(name string, list []Item) int {
	if strings.TrimSpace(name) == "" {
		return Unresolved
	}
	for _, item := range list {
		if item.Name == name {
			return item.Id
		}
	}
	return Unresolved
}
