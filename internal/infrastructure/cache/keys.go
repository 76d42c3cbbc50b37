package cache

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// GenerateKey builds a deterministic cache key. Without params the key is
// "<prefix>:<identifier>". With params it is suffixed with an 8-hex-char
// hash of the parameters sorted by name, so identical semantic queries map
// to the same key regardless of parameter ordering.
func GenerateKey(prefix, identifier string, params map[string]any) string {
	base := prefix + ":" + identifier
	if len(params) == 0 {
		return base
	}
	return base + ":" + hashParams(params)
}

func hashParams(params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%v;", name, params[name])
	}

	h := fnv.New32a()
	h.Write([]byte(b.String()))
	return fmt.Sprintf("%08x", h.Sum32())
}
