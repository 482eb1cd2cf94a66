package diff

import "sort"

// SetResult is the outcome of a set difference. Members keep the order in
// which they first appear in their source list.
type SetResult struct {
	Added   []any
	Removed []any
}

// Empty reports whether neither side gained nor lost members.
func (r SetResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// SetDiff computes added = new - old and removed = old - new, comparing
// members by identity. Order and duplicates are ignored. A nil identity
// uses Identity.
func SetDiff(old, new []any, identity func(any) string) SetResult {
	if identity == nil {
		identity = Identity
	}

	oldKeys := make(map[string]bool, len(old))
	for _, v := range old {
		oldKeys[identity(v)] = true
	}
	newKeys := make(map[string]bool, len(new))
	for _, v := range new {
		newKeys[identity(v)] = true
	}

	var res SetResult
	seen := make(map[string]bool)
	for _, v := range new {
		k := identity(v)
		if !oldKeys[k] && !seen[k] {
			res.Added = append(res.Added, v)
			seen[k] = true
		}
	}
	seen = make(map[string]bool)
	for _, v := range old {
		k := identity(v)
		if !newKeys[k] && !seen[k] {
			res.Removed = append(res.Removed, v)
			seen[k] = true
		}
	}
	return res
}

// StringSetDiff is SetDiff over strings with sorted output.
func StringSetDiff(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, s := range old {
		oldSet[s] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, s := range new {
		newSet[s] = true
	}
	for s := range newSet {
		if !oldSet[s] {
			added = append(added, s)
		}
	}
	for s := range oldSet {
		if !newSet[s] {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
