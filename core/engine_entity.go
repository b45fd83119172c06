package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const EngineEntityAuto = "entity-auto"

const (
	EntityOperationCreate = "create"
	EntityOperationUpdate = "update"
	EntityOperationDelete = "delete"
	EntityOperationFind   = "find"
	EntityOperationList   = "list"
)

const (
	EntityParamID     = "id"
	EntityParamValues = "values"
	EntityParamFilter = "filter"
)

// EntityAutoEngine maps descriptors onto generic entity operations. The
// descriptor's invoke target names the operation and EntityName the entity.
type EntityAutoEngine struct {
	dispatcher *Dispatcher
}

func NewEntityAutoEngine(dispatcher *Dispatcher) (Engine, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("core: entity-auto engine requires a dispatcher")
	}
	return &EntityAutoEngine{dispatcher: dispatcher}, nil
}

func (e *EntityAutoEngine) Name() string {
	return EngineEntityAuto
}

func (e *EntityAutoEngine) Invoke(ctx context.Context, desc ServiceDescriptor, params Params) (Result, error) {
	entity := strings.TrimSpace(desc.EntityName)
	if entity == "" {
		return nil, fmt.Errorf("core: service %q has no entity name", desc.Name)
	}
	store, ok := e.dispatcher.Persistence().(EntityStore)
	if !ok {
		return nil, fmt.Errorf("core: persistence provider does not support entity operations")
	}

	switch strings.ToLower(strings.TrimSpace(desc.Invoke)) {
	case EntityOperationCreate:
		created, err := store.CreateEntity(ctx, entity, entityValues(params))
		if err != nil {
			return nil, err
		}
		return entityResult(created), nil
	case EntityOperationUpdate:
		id, err := entityID(params)
		if err != nil {
			return nil, err
		}
		updated, err := store.UpdateEntity(ctx, entity, id, entityValues(params))
		if err != nil {
			return nil, err
		}
		return entityResult(updated), nil
	case EntityOperationDelete:
		id, err := entityID(params)
		if err != nil {
			return nil, err
		}
		if err := store.DeleteEntity(ctx, entity, id); err != nil {
			return nil, err
		}
		return SuccessWith(map[string]any{EntityParamID: id}), nil
	case EntityOperationFind:
		id, err := entityID(params)
		if err != nil {
			return nil, err
		}
		found, err := store.FindEntity(ctx, entity, id)
		if err != nil {
			return nil, err
		}
		return entityResult(found), nil
	case EntityOperationList:
		filter, _ := params[EntityParamFilter].(map[string]any)
		entities, err := store.ListEntities(ctx, entity, filter)
		if err != nil {
			return nil, err
		}
		items := make([]map[string]any, 0, len(entities))
		for _, item := range entities {
			items = append(items, entityMap(item))
		}
		return SuccessWith(map[string]any{"entities": items, "count": len(items)}), nil
	default:
		return nil, fmt.Errorf("core: unknown entity operation %q for service %q", desc.Invoke, desc.Name)
	}
}

func entityID(params Params) (string, error) {
	id := strings.TrimSpace(stringValue(params[EntityParamID]))
	if id == "" {
		return "", fmt.Errorf("core: entity id is required")
	}
	return id, nil
}

// entityValues prefers an explicit values map and otherwise takes every
// parameter except the id.
func entityValues(params Params) map[string]any {
	if values, ok := params[EntityParamValues].(map[string]any); ok {
		out := make(map[string]any, len(values))
		for key, value := range values {
			out[key] = value
		}
		return out
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		if key == EntityParamID {
			continue
		}
		out[key] = value
	}
	return out
}

func entityResult(entity Entity) Result {
	return SuccessWith(map[string]any{
		EntityParamID: entity.ID,
		"entity":      entityMap(entity),
	})
}

func entityMap(entity Entity) map[string]any {
	values := make(map[string]any, len(entity.Values))
	for key, value := range entity.Values {
		values[key] = value
	}
	return map[string]any{
		"id":          entity.ID,
		"entity_name": entity.Name,
		"values":      values,
		"created_at":  entity.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  entity.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
