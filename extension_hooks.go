package whatsapp

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-whatsapp/pipeline"
)

// MiddlewarePack is a named group of pipeline decorators contributed by a
// downstream module. Packs wrap the terminal handler inside the built-in
// logging and telemetry decorators.
type MiddlewarePack struct {
	Name      string
	Factories []pipeline.Factory
}

type CommandQueryBundleFactory func(facade *Facade) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	middlewarePacks map[string]MiddlewarePack
	bundles         map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		middlewarePacks: map[string]MiddlewarePack{},
		bundles:         map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterMiddlewarePack(pack MiddlewarePack) error {
	if h == nil {
		return fmt.Errorf("whatsapp: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("whatsapp: middleware pack name is required")
	}
	if len(pack.Factories) == 0 {
		return fmt.Errorf("whatsapp: middleware pack %q has no factories", name)
	}
	for index, factory := range pack.Factories {
		if factory == nil {
			return fmt.Errorf("whatsapp: middleware pack %q factory %d is nil", name, index)
		}
	}

	normalized := MiddlewarePack{
		Name:      name,
		Factories: append([]pipeline.Factory(nil), pack.Factories...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.middlewarePacks[name]; exists {
		return fmt.Errorf("whatsapp: middleware pack %q already registered", name)
	}
	h.middlewarePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("whatsapp: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("whatsapp: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("whatsapp: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("whatsapp: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyMiddlewarePacks adds every pack to the builder, packs sorted by name
// and factories in declaration order.
func (h *ExtensionHooks) ApplyMiddlewarePacks(builder *pipeline.Builder) error {
	if h == nil {
		return nil
	}
	if builder == nil {
		return fmt.Errorf("whatsapp: pipeline builder is required")
	}
	for _, pack := range h.MiddlewarePacks() {
		for _, factory := range pack.Factories {
			builder.Use(factory)
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("whatsapp: facade is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		names = append(names, name)
		factories[name] = factory
	}
	h.mu.RUnlock()
	sort.Strings(names)

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](facade)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) MiddlewarePacks() []MiddlewarePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.middlewarePacks))
	for name := range h.middlewarePacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]MiddlewarePack, 0, len(names))
	for _, name := range names {
		pack := h.middlewarePacks[name]
		out = append(out, MiddlewarePack{
			Name:      pack.Name,
			Factories: append([]pipeline.Factory(nil), pack.Factories...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
