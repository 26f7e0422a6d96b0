// Package prefix namespaces keys of a sublevel inside the single flat key
// space of a store.
package prefix

// Add returns key namespaced under p. An empty p leaves key unchanged.
func Add(key, p string) string {
	if p == "" {
		return key
	}
	return p + key
}

// Remove strips the first len(p) bytes of key. It is the exact inverse of Add
// for every key produced by Add(k, p).
func Remove(key, p string) string {
	if p == "" {
		return key
	}
	if len(key) < len(p) {
		return ""
	}
	return key[len(p):]
}

// AddAll namespaces every key of keys under p into a new slice.
func AddAll(keys []string, p string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = Add(k, p)
	}
	return out
}

// Has reports whether key lives in namespace p.
func Has(key, p string) bool {
	return len(key) >= len(p) && key[:len(p)] == p
}
