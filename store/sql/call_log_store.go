package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-dispatcher/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultCallLogLimit = 50

// CallLogStore persists one row per dispatch. It implements core.CallRecorder.
type CallLogStore struct {
	db   *bun.DB
	repo repository.Repository[*callRecord]
}

func NewCallLogStore(db *bun.DB) (*CallLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*callRecord](db, callHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid call log repository wiring: %w", err)
		}
	}
	return &CallLogStore{db: db, repo: repo}, nil
}

func (s *CallLogStore) RecordCall(ctx context.Context, record core.CallRecord) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: call log store is not configured")
	}
	if strings.TrimSpace(record.Service) == "" {
		return fmt.Errorf("sqlstore: call service is required")
	}
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}
	_, err := s.repo.Create(ctx, newCallRecord(record, time.Now().UTC()))
	return err
}

// ListCalls returns the most recent calls, optionally for one service.
func (s *CallLogStore) ListCalls(ctx context.Context, service string, limit int) ([]core.CallRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: call log store is not configured")
	}
	if limit <= 0 {
		limit = defaultCallLogLimit
	}
	criteria := []repository.SelectCriteria{}
	if service = strings.TrimSpace(service); service != "" {
		criteria = append(criteria, repository.SelectBy("service", "=", service))
	}
	criteria = append(criteria,
		repository.OrderBy("started_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.CallRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
