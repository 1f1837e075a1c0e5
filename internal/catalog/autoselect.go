package catalog

import (
	"context"
	"strings"
)

// hostedProviders expose capability classes on their catalog entries; the
// rest are local catalogs selected by size markers in the model name.
var hostedProviders = map[string]bool{
	"claude": true,
}

// roleCapability maps an agent role to the capability class it needs.
var roleCapability = map[string]string{
	"builder":      "coder",
	"tester":       "coder",
	"reviewer":     "coder",
	"investigator": "manager",
	"architect":    "architect",
}

// capabilityChain orders the classes to try for a wanted class, most to
// least specific.
var capabilityChain = map[string][]string{
	"architect": {"architect", "manager", "coder"},
	"manager":   {"manager", "coder"},
	"coder":     {"coder"},
}

// fastMarkers are name fragments that suggest a small/fast model. Local
// catalogs rank models carrying one of these above the rest.
var fastMarkers = []string{
	"haiku", "mini", "small", "fast", "flash", "lite", "tiny",
	"1b", "3b", "7b", "8b",
}

// hardDefaults are the last-resort picks per provider.
var hardDefaults = map[string]ModelDescriptor{
	"claude": {Name: "claude-sonnet-4-5", Provider: "claude", Capability: "coder"},
	"ollama": {Name: "llama3.2", Provider: "ollama"},
	"cursor": {Name: "auto", Provider: "cursor"},
}

// AutoSelect picks a model for a provider/role pair without user input.
// It always returns a usable descriptor: catalog match first, then fallback
// chains, then the provider's hard-coded default.
func (c *Catalog) AutoSelect(ctx context.Context, provider, role string) ModelDescriptor {
	models := c.ListModels(ctx, provider)

	if hostedProviders[provider] {
		if m, ok := pickByCapability(models, roleCapability[role]); ok {
			return m
		}
	} else {
		if m, ok := pickFast(models); ok {
			return m
		}
	}
	if len(models) > 0 {
		return models[0]
	}
	if d, ok := hardDefaults[provider]; ok {
		return d
	}
	// Unknown provider with an empty catalog: synthesize a descriptor so the
	// caller still gets something routable.
	return ModelDescriptor{Name: "default", Provider: provider}
}

// pickByCapability returns the first model matching the wanted class, walking
// down the capability chain.
func pickByCapability(models []ModelDescriptor, want string) (ModelDescriptor, bool) {
	chain, ok := capabilityChain[want]
	if !ok {
		chain = []string{"coder"}
	}
	for _, class := range chain {
		for _, m := range models {
			if m.Capability == class {
				return m, true
			}
		}
	}
	return ModelDescriptor{}, false
}

// pickFast returns the first model whose name carries a size marker.
func pickFast(models []ModelDescriptor) (ModelDescriptor, bool) {
	for _, m := range models {
		name := strings.ToLower(m.Name)
		for _, marker := range fastMarkers {
			if strings.Contains(name, marker) {
				return m, true
			}
		}
	}
	return ModelDescriptor{}, false
}
