package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	EngineStandard = "standard"
	// EngineJava is the identifier method-bound catalogs use for the same
	// handler engine.
	EngineJava = "java"
)

// StandardEngine runs in-process handlers bound to a descriptor's
// (location, invoke) pair.
type StandardEngine struct {
	name       string
	dispatcher *Dispatcher
}

func NewStandardEngine(dispatcher *Dispatcher) (Engine, error) {
	return newHandlerEngine(EngineStandard, dispatcher)
}

func NewJavaEngine(dispatcher *Dispatcher) (Engine, error) {
	return newHandlerEngine(EngineJava, dispatcher)
}

func newHandlerEngine(name string, dispatcher *Dispatcher) (Engine, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("core: %s engine requires a dispatcher", name)
	}
	return &StandardEngine{name: name, dispatcher: dispatcher}, nil
}

func (e *StandardEngine) Name() string {
	return e.name
}

func (e *StandardEngine) Invoke(ctx context.Context, desc ServiceDescriptor, params Params) (Result, error) {
	handler, ok := e.dispatcher.handler(desc.Location, desc.Invoke)
	if !ok {
		return nil, fmt.Errorf("core: no handler bound to %s", handlerKey(desc.Location, desc.Invoke))
	}
	return handler(ctx, params)
}

type handlerTable struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func newHandlerTable() *handlerTable {
	return &handlerTable{handlers: make(map[string]HandlerFunc)}
}

func (t *handlerTable) set(location string, invoke string, handler HandlerFunc) {
	t.mu.Lock()
	t.handlers[handlerKey(location, invoke)] = handler
	t.mu.Unlock()
}

// get falls back to the bare invoke target when nothing is bound under the
// location.
func (t *handlerTable) get(location string, invoke string) (HandlerFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if handler, ok := t.handlers[handlerKey(location, invoke)]; ok {
		return handler, true
	}
	handler, ok := t.handlers[handlerKey("", invoke)]
	return handler, ok
}

func (t *handlerTable) keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.handlers))
	for key := range t.handlers {
		keys = append(keys, key)
	}
	t.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func handlerKey(location string, invoke string) string {
	location = strings.TrimSpace(location)
	invoke = strings.TrimSpace(invoke)
	if location == "" {
		return invoke
	}
	return location + "#" + invoke
}

// HandlerTargets lists the bound handler keys as location#invoke.
func (d *Dispatcher) HandlerTargets() []string {
	if d == nil {
		return []string{}
	}
	return d.handlers.keys()
}
