package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type funcEngine struct {
	name   string
	invoke func(ctx context.Context, desc ServiceDescriptor, params Params) (Result, error)
}

func (e funcEngine) Name() string {
	return e.name
}

func (e funcEngine) Invoke(ctx context.Context, desc ServiceDescriptor, params Params) (Result, error) {
	if e.invoke == nil {
		return Success(), nil
	}
	return e.invoke(ctx, desc, params)
}

func engineFactory(engine Engine) EngineFactory {
	return func(*Dispatcher) (Engine, error) {
		return engine, nil
	}
}

// txJournal records transaction calls in order across every transaction a
// recordingPersistence hands out.
type txJournal struct {
	mu     sync.Mutex
	events []string
}

func (j *txJournal) add(event string) {
	j.mu.Lock()
	j.events = append(j.events, event)
	j.mu.Unlock()
}

func (j *txJournal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.events))
	copy(out, j.events)
	return out
}

func (j *txJournal) count(event string) int {
	total := 0
	for _, item := range j.snapshot() {
		if item == event {
			total++
		}
	}
	return total
}

type recordingPersistence struct {
	journal   *txJournal
	beginErr  error
	commitErr error
}

func newRecordingPersistence() *recordingPersistence {
	return &recordingPersistence{journal: &txJournal{}}
}

func (p *recordingPersistence) BeginTransaction(context.Context) (Transaction, error) {
	p.journal.add("begin")
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return &recordingTransaction{journal: p.journal, commitErr: p.commitErr}, nil
}

type recordingTransaction struct {
	journal   *txJournal
	commitErr error
}

func (t *recordingTransaction) Commit(context.Context) error {
	t.journal.add("commit")
	return t.commitErr
}

func (t *recordingTransaction) Rollback(context.Context) error {
	t.journal.add("rollback")
	return nil
}

// memoryEntityPersistence adds an in-memory EntityStore to the recording
// persistence so the entity-auto engine can run without a database.
type memoryEntityPersistence struct {
	*recordingPersistence
	mu       sync.Mutex
	entities map[string]Entity
	writeErr error
	seq      int
}

func newMemoryEntityPersistence() *memoryEntityPersistence {
	return &memoryEntityPersistence{
		recordingPersistence: newRecordingPersistence(),
		entities:             map[string]Entity{},
	}
}

func (p *memoryEntityPersistence) CreateEntity(_ context.Context, entity string, values map[string]any) (Entity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return Entity{}, p.writeErr
	}
	p.seq++
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record := Entity{
		ID:        fmt.Sprintf("%s_%d", entity, p.seq),
		Name:      entity,
		Values:    values,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.entities[record.ID] = record
	return record, nil
}

func (p *memoryEntityPersistence) UpdateEntity(_ context.Context, entity string, id string, values map[string]any) (Entity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return Entity{}, p.writeErr
	}
	record, ok := p.entities[id]
	if !ok || record.Name != entity {
		return Entity{}, fmt.Errorf("entity %s not found", id)
	}
	for key, value := range values {
		record.Values[key] = value
	}
	p.entities[id] = record
	return record, nil
}

func (p *memoryEntityPersistence) DeleteEntity(_ context.Context, entity string, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	if record, ok := p.entities[id]; !ok || record.Name != entity {
		return fmt.Errorf("entity %s not found", id)
	}
	delete(p.entities, id)
	return nil
}

func (p *memoryEntityPersistence) FindEntity(_ context.Context, entity string, id string) (Entity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	record, ok := p.entities[id]
	if !ok || record.Name != entity {
		return Entity{}, fmt.Errorf("entity %s not found", id)
	}
	return record, nil
}

func (p *memoryEntityPersistence) ListEntities(_ context.Context, entity string, _ map[string]any) ([]Entity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []Entity{}
	for _, record := range p.entities {
		if record.Name == entity {
			out = append(out, record)
		}
	}
	return out, nil
}

type recordingCallback struct {
	mu        sync.Mutex
	before    []string
	after     []string
	beforeErr error
}

func (c *recordingCallback) BeforeInvoke(_ context.Context, desc ServiceDescriptor, _ Params) error {
	c.mu.Lock()
	c.before = append(c.before, desc.Name)
	c.mu.Unlock()
	return c.beforeErr
}

func (c *recordingCallback) AfterInvoke(_ context.Context, desc ServiceDescriptor, _ Params, _ Result, _ error) {
	c.mu.Lock()
	c.after = append(c.after, desc.Name)
	c.mu.Unlock()
}

func (c *recordingCallback) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.before), len(c.after)
}

type captureCallRecorder struct {
	mu      sync.Mutex
	records []CallRecord
	err     error
}

func (r *captureCallRecorder) RecordCall(_ context.Context, record CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.err
}

type captureEnqueuer struct {
	mu       sync.Mutex
	messages []*JobExecutionMessage
	err      error
}

func (e *captureEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

func newTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(Config{Profile: ProfileTest}, opts...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func equalEvents(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for index := range got {
		if got[index] != want[index] {
			return false
		}
	}
	return true
}
