package discovery

import (
	"context"

	"github.com/goliatone/go-dispatcher/core"
)

// StaticSource returns a fixed descriptor table.
type StaticSource struct {
	Descriptors []core.ServiceDescriptor
}

func NewStaticSource(descriptors ...core.ServiceDescriptor) *StaticSource {
	return &StaticSource{Descriptors: descriptors}
}

func (s *StaticSource) Discover(context.Context) ([]core.ServiceDescriptor, error) {
	if s == nil {
		return nil, nil
	}
	out := make([]core.ServiceDescriptor, 0, len(s.Descriptors))
	for _, desc := range s.Descriptors {
		out = append(out, desc.Clone())
	}
	return out, nil
}

// CatalogSource holds descriptor tables keyed by location and scans them in
// the configured order. Locations without a table are skipped.
type CatalogSource struct {
	Locations []string
	Catalogs  map[string][]core.ServiceDescriptor
}

func NewCatalogSource(locations []string, catalogs map[string][]core.ServiceDescriptor) *CatalogSource {
	return &CatalogSource{
		Locations: append([]string(nil), locations...),
		Catalogs:  catalogs,
	}
}

func (s *CatalogSource) Discover(context.Context) ([]core.ServiceDescriptor, error) {
	if s == nil {
		return nil, nil
	}
	out := []core.ServiceDescriptor{}
	for _, location := range s.Locations {
		for _, desc := range s.Catalogs[location] {
			out = append(out, desc.Clone())
		}
	}
	return out, nil
}

// MultiSource concatenates sources in order so later sources override earlier
// ones once registered.
type MultiSource struct {
	Sources []core.DescriptorSource
	// SkipErrors keeps discovering past a failing source.
	SkipErrors bool
}

func NewMultiSource(sources ...core.DescriptorSource) *MultiSource {
	return &MultiSource{Sources: sources}
}

func (s *MultiSource) Discover(ctx context.Context) ([]core.ServiceDescriptor, error) {
	if s == nil {
		return nil, nil
	}
	out := []core.ServiceDescriptor{}
	for _, source := range s.Sources {
		if source == nil {
			continue
		}
		descriptors, err := source.Discover(ctx)
		if err != nil {
			if s.SkipErrors {
				continue
			}
			return nil, err
		}
		out = append(out, descriptors...)
	}
	return out, nil
}
