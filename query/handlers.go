package query

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/go-dispatcher/core"
)

type ServiceCatalog interface {
	LookupService(name string) (core.ServiceDescriptor, bool)
	ListServices() map[string]core.ServiceDescriptor
}

type CallLogReader interface {
	ListCalls(ctx context.Context, service string, limit int) ([]core.CallRecord, error)
}

type ListServicesQuery struct {
	catalog ServiceCatalog
}

func NewListServicesQuery(catalog ServiceCatalog) *ListServicesQuery {
	return &ListServicesQuery{catalog: catalog}
}

// Query returns descriptors ordered by name.
func (q *ListServicesQuery) Query(_ context.Context, msg ListServicesMessage) ([]core.ServiceDescriptor, error) {
	if q == nil || q.catalog == nil {
		return nil, queryDependencyError("query: service catalog is required")
	}
	engine := strings.ToLower(strings.TrimSpace(msg.Engine))
	services := q.catalog.ListServices()
	out := make([]core.ServiceDescriptor, 0, len(services))
	for _, desc := range services {
		if engine != "" && desc.EngineName != engine {
			continue
		}
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type GetServiceQuery struct {
	catalog ServiceCatalog
}

func NewGetServiceQuery(catalog ServiceCatalog) *GetServiceQuery {
	return &GetServiceQuery{catalog: catalog}
}

func (q *GetServiceQuery) Query(_ context.Context, msg GetServiceMessage) (core.ServiceDescriptor, error) {
	if q == nil || q.catalog == nil {
		return core.ServiceDescriptor{}, queryDependencyError("query: service catalog is required")
	}
	name := strings.TrimSpace(msg.Name)
	desc, ok := q.catalog.LookupService(name)
	if !ok {
		return core.ServiceDescriptor{}, queryNotFoundError(name)
	}
	return desc, nil
}

type ListCallsQuery struct {
	reader CallLogReader
}

func NewListCallsQuery(reader CallLogReader) *ListCallsQuery {
	return &ListCallsQuery{reader: reader}
}

func (q *ListCallsQuery) Query(ctx context.Context, msg ListCallsMessage) ([]core.CallRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: call log reader is required")
	}
	return q.reader.ListCalls(ctx, strings.TrimSpace(msg.Service), msg.Limit)
}
