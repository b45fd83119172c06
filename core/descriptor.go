package core

import (
	"fmt"
	"strings"
)

// ServiceDescriptor binds a service name to an engine and its policy flags.
// Location and Invoke are opaque to the dispatcher and only interpreted by
// the engine.
type ServiceDescriptor struct {
	Name        string   `json:"name" yaml:"name" koanf:"name" mapstructure:"name"`
	EngineName  string   `json:"engine" yaml:"engine" koanf:"engine" mapstructure:"engine"`
	Location    string   `json:"location" yaml:"location" koanf:"location" mapstructure:"location"`
	Invoke      string   `json:"invoke" yaml:"invoke" koanf:"invoke" mapstructure:"invoke"`
	EntityName  string   `json:"entity_name,omitempty" yaml:"entity_name,omitempty" koanf:"entity_name" mapstructure:"entity_name"`
	Transaction bool     `json:"transaction" yaml:"transaction" koanf:"transaction" mapstructure:"transaction"`
	Persist     bool     `json:"persist" yaml:"persist" koanf:"persist" mapstructure:"persist"`
	Export      bool     `json:"export" yaml:"export" koanf:"export" mapstructure:"export"`
	RequireAuth bool     `json:"require_auth" yaml:"require_auth" koanf:"require_auth" mapstructure:"require_auth"`
	Callbacks   []string `json:"callbacks,omitempty" yaml:"callbacks,omitempty" koanf:"callbacks" mapstructure:"callbacks"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" koanf:"description" mapstructure:"description"`
}

// Transactional reports whether a dispatch must begin a transaction.
func (d ServiceDescriptor) Transactional() bool {
	return d.Persist && d.Transaction
}

func (d ServiceDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("core: service name is required")
	}
	if strings.TrimSpace(d.EngineName) == "" {
		return fmt.Errorf("core: engine name is required for service %q", d.Name)
	}
	return nil
}

func (d ServiceDescriptor) Clone() ServiceDescriptor {
	cloned := d
	cloned.Callbacks = normalizeIdentifiers(d.Callbacks)
	return cloned
}

func (d ServiceDescriptor) normalized() ServiceDescriptor {
	cloned := d.Clone()
	cloned.Name = strings.TrimSpace(d.Name)
	cloned.EngineName = normalizeEngineName(d.EngineName)
	cloned.Location = strings.TrimSpace(d.Location)
	cloned.Invoke = strings.TrimSpace(d.Invoke)
	cloned.EntityName = strings.TrimSpace(d.EntityName)
	return cloned
}

// DescriptorOption tweaks a descriptor built with NewDescriptor.
type DescriptorOption func(*ServiceDescriptor)

func NewDescriptor(name string, engineName string, opts ...DescriptorOption) ServiceDescriptor {
	desc := ServiceDescriptor{
		Name:       strings.TrimSpace(name),
		EngineName: normalizeEngineName(engineName),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&desc)
	}
	return desc
}

func WithTarget(location string, invoke string) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.Location = strings.TrimSpace(location)
		d.Invoke = strings.TrimSpace(invoke)
	}
}

func WithEntity(entityName string) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.EntityName = strings.TrimSpace(entityName)
	}
}

func WithPersist(persist bool) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.Persist = persist
	}
}

func WithTransaction(transaction bool) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.Transaction = transaction
	}
}

func WithExport(export bool) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.Export = export
	}
}

func WithRequireAuth(requireAuth bool) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.RequireAuth = requireAuth
	}
}

func WithCallbacks(ids ...string) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.Callbacks = append(d.Callbacks, ids...)
	}
}

func WithDescription(description string) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.Description = strings.TrimSpace(description)
	}
}

func normalizeEngineName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

// normalizeIdentifiers trims, drops empties and dedupes while keeping order.
func normalizeIdentifiers(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
