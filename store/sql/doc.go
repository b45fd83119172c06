// Package sqlstore implements the dispatcher persistence provider, the entity
// store used by the entity-auto engine, a database descriptor catalog and a
// call log on top of bun.
package sqlstore
