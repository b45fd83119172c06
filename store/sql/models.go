package sqlstore

import (
	"time"

	"github.com/goliatone/go-dispatcher/core"
	"github.com/uptrace/bun"
)

type descriptorRecord struct {
	bun.BaseModel `bun:"table:service_descriptors,alias:sd"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Engine      string    `bun:"engine,notnull"`
	Location    string    `bun:"location,notnull"`
	Invoke      string    `bun:"invoke,notnull"`
	EntityName  string    `bun:"entity_name,notnull"`
	Transaction bool      `bun:"use_transaction,notnull"`
	Persist     bool      `bun:"persist,notnull"`
	Export      bool      `bun:"export,notnull"`
	RequireAuth bool      `bun:"require_auth,notnull"`
	Callbacks   []string  `bun:"callbacks,type:jsonb,notnull"`
	Description string    `bun:"description,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newDescriptorRecord(desc core.ServiceDescriptor, now time.Time) *descriptorRecord {
	desc = desc.Clone()
	callbacks := desc.Callbacks
	if callbacks == nil {
		callbacks = []string{}
	}
	return &descriptorRecord{
		Name:        desc.Name,
		Engine:      desc.EngineName,
		Location:    desc.Location,
		Invoke:      desc.Invoke,
		EntityName:  desc.EntityName,
		Transaction: desc.Transaction,
		Persist:     desc.Persist,
		Export:      desc.Export,
		RequireAuth: desc.RequireAuth,
		Callbacks:   callbacks,
		Description: desc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *descriptorRecord) toDomain() core.ServiceDescriptor {
	if r == nil {
		return core.ServiceDescriptor{}
	}
	return core.ServiceDescriptor{
		Name:        r.Name,
		EngineName:  r.Engine,
		Location:    r.Location,
		Invoke:      r.Invoke,
		EntityName:  r.EntityName,
		Transaction: r.Transaction,
		Persist:     r.Persist,
		Export:      r.Export,
		RequireAuth: r.RequireAuth,
		Callbacks:   append([]string(nil), r.Callbacks...),
		Description: r.Description,
	}
}

type entityRecord struct {
	bun.BaseModel `bun:"table:dispatch_entities,alias:de"`

	ID         string         `bun:"id,pk"`
	EntityName string         `bun:"entity_name,notnull"`
	Values     map[string]any `bun:"field_values,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *entityRecord) toDomain() core.Entity {
	if r == nil {
		return core.Entity{}
	}
	return core.Entity{
		ID:        r.ID,
		Name:      r.EntityName,
		Values:    copyAnyMap(r.Values),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type callRecord struct {
	bun.BaseModel `bun:"table:dispatch_calls,alias:dc"`

	ID            string    `bun:"id,pk"`
	Service       string    `bun:"service,notnull"`
	Engine        string    `bun:"engine,notnull"`
	Status        string    `bun:"status,notnull"`
	ErrorCode     string    `bun:"error_code,notnull"`
	Message       string    `bun:"message,notnull"`
	Transactional bool      `bun:"transactional,notnull"`
	StartedAt     time.Time `bun:"started_at,notnull"`
	DurationMS    int64     `bun:"duration_ms,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newCallRecord(record core.CallRecord, now time.Time) *callRecord {
	return &callRecord{
		ID:            record.ID,
		Service:       record.Service,
		Engine:        record.Engine,
		Status:        record.Status,
		ErrorCode:     record.ErrorCode,
		Message:       record.Message,
		Transactional: record.Transaction,
		StartedAt:     record.StartedAt.UTC(),
		DurationMS:    record.Duration.Milliseconds(),
		CreatedAt:     now,
	}
}

func (r *callRecord) toDomain() core.CallRecord {
	if r == nil {
		return core.CallRecord{}
	}
	return core.CallRecord{
		ID:          r.ID,
		Service:     r.Service,
		Engine:      r.Engine,
		Status:      r.Status,
		ErrorCode:   r.ErrorCode,
		Message:     r.Message,
		Transaction: r.Transactional,
		StartedAt:   r.StartedAt.UTC(),
		Duration:    time.Duration(r.DurationMS) * time.Millisecond,
	}
}

func copyAnyMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
