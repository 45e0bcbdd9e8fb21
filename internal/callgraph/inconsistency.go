package callgraph

// Inconsistent reports whether node's recorded paths disagree on depth:
// at least two paths have different lengths, AND no node other than
// the target itself appears in more than one of those paths. The
// uniqueness guard rules out the trivial case where two paths merely
// reflect alternate routings through the same set of intermediate
// callers, which is not a layering problem.
func Inconsistent(paths []Path) bool {
	if len(paths) < 2 {
		return false
	}

	lengths := make(map[int]bool)
	for _, p := range paths {
		lengths[len(p)] = true
	}
	if len(lengths) < 2 {
		return false
	}

	seen := make(map[Key]bool)
	for _, p := range paths {
		// Exclude the final hop (the node itself): it legitimately
		// appears in every one of its own paths.
		for _, it := range p[:len(p)-1] {
			k := it.Key()
			if seen[k] {
				return false
			}
			seen[k] = true
		}
	}
	return true
}

// Partition splits a depths map into the "ok" and "problems" subsets
// per Inconsistent.
func Partition(depths map[Key][]Path) (ok, problems map[Key][]Path) {
	ok = make(map[Key][]Path)
	problems = make(map[Key][]Path)
	for k, paths := range depths {
		if Inconsistent(paths) {
			problems[k] = paths
		} else {
			ok[k] = paths
		}
	}
	return ok, problems
}
