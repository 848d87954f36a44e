package progress

// LabelSet is an insertion-ordered set of area labels.
// Matching is exact and case-sensitive.
type LabelSet []string

// Contains reports whether label is already in the set.
func (s LabelSet) Contains(label string) bool {
	for _, l := range s {
		if l == label {
			return true
		}
	}
	return false
}

// Merge returns the union of s and labels, keeping the order in which labels
// were first seen. Empty labels are ignored.
func (s LabelSet) Merge(labels ...string) LabelSet {
	out := make(LabelSet, 0, len(s)+len(labels))
	out = append(out, s...)
	for _, l := range labels {
		if l == "" || out.Contains(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// First returns up to n labels from the front of the set.
func (s LabelSet) First(n int) []string {
	if len(s) <= n {
		return []string(s)
	}
	return []string(s[:n])
}
