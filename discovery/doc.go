// Package discovery provides descriptor sources for the dispatcher: declarative
// tables, per-location catalogs and YAML files read from an fs.FS.
package discovery
