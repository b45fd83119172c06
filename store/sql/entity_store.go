package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-dispatcher/core"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EntityStore keeps generic entities as JSON value maps in dispatch_entities.
// Calls run on the transaction bound to ctx when there is one.
type EntityStore struct {
	db   *bun.DB
	repo repository.Repository[*entityRecord]
}

func NewEntityStore(db *bun.DB) (*EntityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*entityRecord](db, entityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid entity repository wiring: %w", err)
		}
	}
	return &EntityStore{db: db, repo: repo}, nil
}

func (s *EntityStore) CreateEntity(ctx context.Context, entity string, values map[string]any) (core.Entity, error) {
	if s == nil || s.repo == nil {
		return core.Entity{}, fmt.Errorf("sqlstore: entity store is not configured")
	}
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return core.Entity{}, fmt.Errorf("sqlstore: entity name is required")
	}
	now := time.Now().UTC()
	record := &entityRecord{
		ID:         uuid.NewString(),
		EntityName: entity,
		Values:     copyAnyMap(values),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	idb, _ := dbFromContext(ctx, s.db)
	created, err := s.repo.CreateTx(ctx, idb, record)
	if err != nil {
		return core.Entity{}, err
	}
	return created.toDomain(), nil
}

func (s *EntityStore) UpdateEntity(ctx context.Context, entity string, id string, values map[string]any) (core.Entity, error) {
	if s == nil || s.repo == nil {
		return core.Entity{}, fmt.Errorf("sqlstore: entity store is not configured")
	}
	idb, _ := dbFromContext(ctx, s.db)
	record, err := s.find(ctx, idb, entity, id)
	if err != nil {
		return core.Entity{}, err
	}
	merged := copyAnyMap(record.Values)
	for key, value := range values {
		merged[key] = value
	}
	record.Values = merged
	record.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateTx(ctx, idb, record, repository.UpdateByID(record.ID))
	if err != nil {
		return core.Entity{}, err
	}
	return updated.toDomain(), nil
}

func (s *EntityStore) DeleteEntity(ctx context.Context, entity string, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: entity store is not configured")
	}
	idb, _ := dbFromContext(ctx, s.db)
	record, err := s.find(ctx, idb, entity, id)
	if err != nil {
		return err
	}
	return s.repo.DeleteTx(ctx, idb, record)
}

func (s *EntityStore) FindEntity(ctx context.Context, entity string, id string) (core.Entity, error) {
	if s == nil || s.repo == nil {
		return core.Entity{}, fmt.Errorf("sqlstore: entity store is not configured")
	}
	idb, _ := dbFromContext(ctx, s.db)
	record, err := s.find(ctx, idb, entity, id)
	if err != nil {
		return core.Entity{}, err
	}
	return record.toDomain(), nil
}

// ListEntities filters on top level value keys in memory after loading the
// entity's rows ordered by creation time.
func (s *EntityStore) ListEntities(ctx context.Context, entity string, filter map[string]any) ([]core.Entity, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: entity store is not configured")
	}
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return nil, fmt.Errorf("sqlstore: entity name is required")
	}

	idb, _ := dbFromContext(ctx, s.db)
	records, _, err := s.repo.ListTx(ctx, idb,
		repository.SelectBy("entity_name", "=", entity),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}

	out := make([]core.Entity, 0, len(records))
	for _, record := range records {
		if !matchesFilter(record.Values, filter) {
			continue
		}
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *EntityStore) find(ctx context.Context, idb bun.IDB, entity string, id string) (*entityRecord, error) {
	entity = strings.TrimSpace(entity)
	id = strings.TrimSpace(id)
	if entity == "" || id == "" {
		return nil, fmt.Errorf("sqlstore: entity name and id are required")
	}

	record, err := s.repo.GetTx(ctx, idb,
		repository.SelectBy("id", "=", id),
		repository.SelectBy("entity_name", "=", entity),
	)
	if isRecordMissing(err) {
		return nil, goerrors.New(fmt.Sprintf("sqlstore: %s %s not found", entity, id), goerrors.CategoryNotFound).
			WithTextCode("ENTITY_NOT_FOUND").
			WithMetadata(map[string]any{"entity_name": entity, "id": id})
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// isRecordMissing matches both the raw driver sentinel and the repository's
// not found envelope.
func isRecordMissing(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.Category == goerrors.CategoryNotFound
}

func matchesFilter(values map[string]any, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, ok := values[key]
		if !ok || fmt.Sprint(value) != fmt.Sprint(filter[key]) {
			return false
		}
	}
	return true
}
