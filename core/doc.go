// Package core contains the service dispatch engine: descriptor, engine and
// callback registries, and the Dispatcher that routes calls by service name.
// Storage, discovery and queue adapters depend on this package; core must not
// depend on them.
package core
