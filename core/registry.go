package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ServiceRegistry holds descriptors by name. A later registration with the
// same name replaces the earlier one.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]ServiceDescriptor
}

func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]ServiceDescriptor)}
}

func (r *ServiceRegistry) Register(desc ServiceDescriptor) error {
	if r == nil {
		return fmt.Errorf("core: service registry is nil")
	}
	desc = desc.normalized()
	if err := desc.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.services[desc.Name] = desc
	r.mu.Unlock()
	return nil
}

func (r *ServiceRegistry) Lookup(name string) (ServiceDescriptor, bool) {
	if r == nil {
		return ServiceDescriptor{}, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ServiceDescriptor{}, false
	}
	r.mu.RLock()
	desc, ok := r.services[name]
	r.mu.RUnlock()
	if !ok {
		return ServiceDescriptor{}, false
	}
	return desc.Clone(), true
}

// All returns a copy; mutating it does not affect dispatch.
func (r *ServiceRegistry) All() map[string]ServiceDescriptor {
	if r == nil {
		return map[string]ServiceDescriptor{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ServiceDescriptor, len(r.services))
	for name, desc := range r.services {
		out[name] = desc.Clone()
	}
	return out
}

func (r *ServiceRegistry) Names() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *ServiceRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

type EngineRegistry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{engines: make(map[string]Engine)}
}

// Register stores the engine under its own name, replacing any prior engine.
func (r *EngineRegistry) Register(engine Engine) error {
	if r == nil {
		return fmt.Errorf("core: engine registry is nil")
	}
	if engine == nil {
		return fmt.Errorf("core: engine is nil")
	}
	name := normalizeEngineName(engine.Name())
	if name == "" {
		return fmt.Errorf("core: engine name is required")
	}
	r.mu.Lock()
	r.engines[name] = engine
	r.mu.Unlock()
	return nil
}

func (r *EngineRegistry) Lookup(name string) (Engine, bool) {
	if r == nil {
		return nil, false
	}
	name = normalizeEngineName(name)
	if name == "" {
		return nil, false
	}
	r.mu.RLock()
	engine, ok := r.engines[name]
	r.mu.RUnlock()
	return engine, ok
}

func (r *EngineRegistry) Names() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

type CallbackRegistry struct {
	mu        sync.RWMutex
	callbacks map[string]Callback
}

func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{callbacks: make(map[string]Callback)}
}

func (r *CallbackRegistry) Register(id string, callback Callback) error {
	if r == nil {
		return fmt.Errorf("core: callback registry is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("core: callback identifier is required")
	}
	if callback == nil {
		return fmt.Errorf("core: callback %q is nil", id)
	}
	r.mu.Lock()
	r.callbacks[id] = callback
	r.mu.Unlock()
	return nil
}

func (r *CallbackRegistry) Lookup(id string) (Callback, bool) {
	if r == nil {
		return nil, false
	}
	id = strings.TrimSpace(id)
	r.mu.RLock()
	callback, ok := r.callbacks[id]
	r.mu.RUnlock()
	return callback, ok
}

func (r *CallbackRegistry) IDs() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.callbacks))
	for id := range r.callbacks {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// factoryTable maps plugin identifiers to constructors. It replaces runtime
// symbol resolution: identifiers only resolve if a factory was registered.
type factoryTable[F any] struct {
	mu        sync.RWMutex
	factories map[string]F
}

func newFactoryTable[F any]() *factoryTable[F] {
	return &factoryTable[F]{factories: make(map[string]F)}
}

func (t *factoryTable[F]) set(id string, factory F) {
	t.mu.Lock()
	t.factories[id] = factory
	t.mu.Unlock()
}

func (t *factoryTable[F]) get(id string) (F, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	factory, ok := t.factories[id]
	return factory, ok
}

func (t *factoryTable[F]) ids() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.factories))
	for id := range t.factories {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
