package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-dispatcher/core"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DescriptorStore is a database descriptor catalog. It is a
// core.DescriptorSource, so a dispatcher can load services from it directly.
type DescriptorStore struct {
	db   *bun.DB
	repo repository.Repository[*descriptorRecord]
}

func NewDescriptorStore(db *bun.DB) (*DescriptorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*descriptorRecord](db, descriptorHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid descriptor repository wiring: %w", err)
		}
	}
	return &DescriptorStore{db: db, repo: repo}, nil
}

// Save inserts the descriptor or replaces the row holding the same name.
func (s *DescriptorStore) Save(ctx context.Context, desc core.ServiceDescriptor) (core.ServiceDescriptor, error) {
	if s == nil || s.repo == nil {
		return core.ServiceDescriptor{}, fmt.Errorf("sqlstore: descriptor store is not configured")
	}
	desc = core.NewDescriptor(desc.Name, desc.EngineName, copyDescriptorOptions(desc)...)
	if err := desc.Validate(); err != nil {
		return core.ServiceDescriptor{}, err
	}

	now := time.Now().UTC()
	record := newDescriptorRecord(desc, now)
	existing, err := s.findByName(ctx, desc.Name)
	switch {
	case err == nil:
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		updated, updateErr := s.repo.Update(ctx, record, repository.UpdateByID(existing.ID))
		if updateErr != nil {
			return core.ServiceDescriptor{}, updateErr
		}
		return updated.toDomain(), nil
	case isRecordMissing(err):
		record.ID = uuid.NewString()
		created, createErr := s.repo.Create(ctx, record)
		if createErr != nil {
			return core.ServiceDescriptor{}, createErr
		}
		return created.toDomain(), nil
	default:
		return core.ServiceDescriptor{}, err
	}
}

func (s *DescriptorStore) Get(ctx context.Context, name string) (core.ServiceDescriptor, error) {
	if s == nil || s.db == nil {
		return core.ServiceDescriptor{}, fmt.Errorf("sqlstore: descriptor store is not configured")
	}
	record, err := s.findByName(ctx, name)
	if isRecordMissing(err) {
		return core.ServiceDescriptor{}, goerrors.New(
			fmt.Sprintf("sqlstore: service %s not found", strings.TrimSpace(name)),
			goerrors.CategoryNotFound,
		).WithTextCode(core.ErrorServiceNotFound)
	}
	if err != nil {
		return core.ServiceDescriptor{}, err
	}
	return record.toDomain(), nil
}

func (s *DescriptorStore) Delete(ctx context.Context, name string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: descriptor store is not configured")
	}
	record, err := s.findByName(ctx, name)
	if isRecordMissing(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, record)
}

func (s *DescriptorStore) List(ctx context.Context) ([]core.ServiceDescriptor, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: descriptor store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("name ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.ServiceDescriptor, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *DescriptorStore) Discover(ctx context.Context) ([]core.ServiceDescriptor, error) {
	return s.List(ctx)
}

func (s *DescriptorStore) findByName(ctx context.Context, name string) (*descriptorRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("sqlstore: service name is required")
	}
	return s.repo.Get(ctx, repository.SelectBy("name", "=", name))
}

func copyDescriptorOptions(desc core.ServiceDescriptor) []core.DescriptorOption {
	return []core.DescriptorOption{
		core.WithTarget(desc.Location, desc.Invoke),
		core.WithEntity(desc.EntityName),
		core.WithPersist(desc.Persist),
		core.WithTransaction(desc.Transaction),
		core.WithExport(desc.Export),
		core.WithRequireAuth(desc.RequireAuth),
		core.WithCallbacks(desc.Callbacks...),
		core.WithDescription(desc.Description),
	}
}
