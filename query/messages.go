package query

import (
	"strings"
)

const (
	TypeListServices = "dispatcher.query.services.list"
	TypeGetService   = "dispatcher.query.service.get"
	TypeListCalls    = "dispatcher.query.calls.list"
)

// ListServicesMessage optionally narrows the catalog to one engine.
type ListServicesMessage struct {
	Engine string
}

func (ListServicesMessage) Type() string { return TypeListServices }

func (m ListServicesMessage) Validate() error {
	return nil
}

type GetServiceMessage struct {
	Name string
}

func (GetServiceMessage) Type() string { return TypeGetService }

func (m GetServiceMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return queryValidationError("name", "service name is required")
	}
	return nil
}

type ListCallsMessage struct {
	Service string
	Limit   int
}

func (ListCallsMessage) Type() string { return TypeListCalls }

func (m ListCallsMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
