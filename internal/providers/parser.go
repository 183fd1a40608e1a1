package providers

import "strings"

// ProviderRef is a parsed provider selector of the form "name" or
// "name:model".
type ProviderRef struct {
	Raw   string
	Name  string
	Model string
}

func ParseProviderRef(raw string) ProviderRef {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ProviderRef{Raw: "mock", Name: "mock"}
	}
	ref := ProviderRef{Raw: raw}
	if strings.Contains(raw, ":") {
		x := strings.SplitN(raw, ":", 2)
		ref.Name = strings.ToLower(strings.TrimSpace(x[0]))
		ref.Model = strings.TrimSpace(x[1])
	} else {
		ref.Name = strings.ToLower(raw)
	}
	return ref
}
