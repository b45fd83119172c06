package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/goliatone/go-dispatcher/core"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a descriptor catalog.
//
//	services:
//	  - name: orders.create
//	    engine: entity-auto
//	    entity_name: Order
//	    invoke: create
//	    persist: true
//	    transaction: true
type catalogFile struct {
	Services []core.ServiceDescriptor `yaml:"services"`
}

// FileSource reads *.yaml and *.yml catalogs from each location directory of
// FS. Locations are read in order and files within a location by name.
type FileSource struct {
	FS        fs.FS
	Locations []string
}

func NewFileSource(fsys fs.FS, locations ...string) *FileSource {
	return &FileSource{FS: fsys, Locations: locations}
}

func (s *FileSource) Discover(ctx context.Context) ([]core.ServiceDescriptor, error) {
	if s == nil || s.FS == nil {
		return nil, nil
	}
	locations := s.Locations
	if len(locations) == 0 {
		locations = []string{"."}
	}
	out := []core.ServiceDescriptor{}
	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := catalogFiles(s.FS, location)
		if err != nil {
			return nil, err
		}
		for _, name := range files {
			descriptors, err := readCatalog(s.FS, name)
			if err != nil {
				return nil, err
			}
			out = append(out, descriptors...)
		}
	}
	return out, nil
}

func catalogFiles(fsys fs.FS, location string) ([]string, error) {
	location = path.Clean(strings.TrimSpace(location))
	if isCatalogFile(location) {
		return []string{location}, nil
	}
	entries, err := fs.ReadDir(fsys, location)
	if err != nil {
		return nil, fmt.Errorf("discovery: read location %q: %w", location, err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isCatalogFile(entry.Name()) {
			continue
		}
		files = append(files, path.Join(location, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readCatalog(fsys fs.FS, name string) ([]core.ServiceDescriptor, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("discovery: read catalog %q: %w", name, err)
	}
	var catalog catalogFile
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("discovery: invalid catalog %q: %w", name, err)
	}
	return catalog.Services, nil
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
