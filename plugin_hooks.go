package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-dispatcher/core"
)

type HandlerBinding struct {
	Location string
	Invoke   string
	Handler  core.HandlerFunc
}

// PluginPack bundles everything one extension contributes to a dispatcher.
type PluginPack struct {
	Name        string
	Engines     map[string]core.EngineFactory
	Callbacks   map[string]core.CallbackFactory
	Handlers    []HandlerBinding
	Descriptors []core.ServiceDescriptor
}

func (p PluginPack) empty() bool {
	return len(p.Engines) == 0 && len(p.Callbacks) == 0 && len(p.Handlers) == 0 && len(p.Descriptors) == 0
}

func (p PluginPack) clone() PluginPack {
	out := PluginPack{
		Name:        p.Name,
		Engines:     make(map[string]core.EngineFactory, len(p.Engines)),
		Callbacks:   make(map[string]core.CallbackFactory, len(p.Callbacks)),
		Handlers:    append([]HandlerBinding(nil), p.Handlers...),
		Descriptors: make([]core.ServiceDescriptor, 0, len(p.Descriptors)),
	}
	for id, factory := range p.Engines {
		out.Engines[id] = factory
	}
	for id, factory := range p.Callbacks {
		out.Callbacks[id] = factory
	}
	for _, desc := range p.Descriptors {
		out.Descriptors = append(out.Descriptors, desc.Clone())
	}
	return out
}

// PluginHooks collects named packs and applies them to a dispatcher in name
// order.
type PluginHooks struct {
	mu    sync.RWMutex
	packs map[string]PluginPack
}

func NewPluginHooks() *PluginHooks {
	return &PluginHooks{packs: map[string]PluginPack{}}
}

func (h *PluginHooks) RegisterPack(pack PluginPack) error {
	if h == nil {
		return fmt.Errorf("dispatcher: plugin hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("dispatcher: plugin pack name is required")
	}
	if pack.empty() {
		return fmt.Errorf("dispatcher: plugin pack %q is empty", name)
	}
	for id, factory := range pack.Engines {
		if factory == nil {
			return fmt.Errorf("dispatcher: plugin pack %q engine %q has no factory", name, id)
		}
	}
	for id, factory := range pack.Callbacks {
		if factory == nil {
			return fmt.Errorf("dispatcher: plugin pack %q callback %q has no factory", name, id)
		}
	}
	for _, binding := range pack.Handlers {
		if binding.Handler == nil {
			return fmt.Errorf("dispatcher: plugin pack %q handler %q has no function", name, binding.Invoke)
		}
	}
	pack.Name = name

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.packs == nil {
		h.packs = map[string]PluginPack{}
	}
	if _, exists := h.packs[name]; exists {
		return fmt.Errorf("dispatcher: plugin pack %q already registered", name)
	}
	h.packs[name] = pack.clone()
	return nil
}

// Apply registers engine factories, callback factories, handlers and then
// descriptors from every pack. A failing entry does not stop the rest; all
// failures are returned joined.
func (h *PluginHooks) Apply(d *core.Dispatcher) error {
	if h == nil {
		return nil
	}
	if d == nil {
		return fmt.Errorf("dispatcher: dispatcher is required")
	}

	var errs []error
	for _, pack := range h.Packs() {
		for _, id := range sortedKeys(pack.Engines) {
			if err := d.RegisterEngineFactory(id, pack.Engines[id]); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := d.RegisterEngine(id); err != nil {
				errs = append(errs, err)
			}
		}
		for _, id := range sortedKeys(pack.Callbacks) {
			if err := d.RegisterCallbackFactory(id, pack.Callbacks[id]); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := d.RegisterCallback(id); err != nil {
				errs = append(errs, err)
			}
		}
		for _, binding := range pack.Handlers {
			if err := d.RegisterHandler(binding.Location, binding.Invoke, binding.Handler); err != nil {
				errs = append(errs, err)
			}
		}
		for _, desc := range pack.Descriptors {
			if err := d.RegisterService(desc); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// DescriptorSource serves pack descriptors so they can be combined with other
// sources in a discovery.MultiSource.
func (h *PluginHooks) DescriptorSource() core.DescriptorSource {
	return core.DescriptorSourceFunc(func(context.Context) ([]core.ServiceDescriptor, error) {
		out := []core.ServiceDescriptor{}
		for _, pack := range h.Packs() {
			out = append(out, pack.Descriptors...)
		}
		return out, nil
	})
}

func (h *PluginHooks) Packs() []PluginPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.packs))
	for name := range h.packs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]PluginPack, 0, len(names))
	for _, name := range names {
		out = append(out, h.packs[name].clone())
	}
	return out
}

func (h *PluginHooks) PackNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.packs))
	for name := range h.packs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for key := range in {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
