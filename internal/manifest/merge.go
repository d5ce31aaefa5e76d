package manifest

// Merge combines two trees over the union of their keys. When both sides hold
// a mapping under the same key the mappings are merged recursively; otherwise
// the value from b wins. Keys present on one side only pass through.
// Neither input is modified; the result shares no mappings with them.
func Merge(a, b Tree) Tree {
	out := make(Tree, len(a)+len(b))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	for k, bv := range b {
		av, exists := out[k]
		if exists {
			at, aok := AsTree(av)
			bt, bok := AsTree(bv)
			if aok && bok {
				out[k] = Merge(at, bt)
				continue
			}
		}
		out[k] = cloneValue(bv)
	}
	return out
}

// MergeAll folds Merge left to right, so later trees override earlier ones.
func MergeAll(trees ...Tree) Tree {
	out := Tree{}
	for _, t := range trees {
		out = Merge(out, t)
	}
	return out
}
