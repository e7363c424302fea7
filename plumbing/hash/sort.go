package hash

import "sort"

// Sort orders a slice of Digests in increasing lexicographic order, giving
// callers a deterministic iteration order over a set of content-addressed
// objects.
func Sort(a []Digest) {
	sort.Slice(a, func(i, j int) bool {
		return string(a[i][:]) < string(a[j][:])
	})
}
