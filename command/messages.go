package command

import (
	"strings"

	"github.com/goliatone/go-dispatcher/core"
)

const (
	TypeRunService      = "dispatcher.command.service.run"
	TypeRunAsyncService = "dispatcher.command.service.run_async"
	TypeRegisterService = "dispatcher.command.service.register"
	TypeRefreshServices = "dispatcher.command.services.refresh"
)

type RunServiceMessage struct {
	Service string
	Params  core.Params
}

func (RunServiceMessage) Type() string { return TypeRunService }

func (m RunServiceMessage) Validate() error {
	return validateServiceName(m.Service)
}

type RunAsyncServiceMessage struct {
	Service string
	Params  core.Params
}

func (RunAsyncServiceMessage) Type() string { return TypeRunAsyncService }

func (m RunAsyncServiceMessage) Validate() error {
	return validateServiceName(m.Service)
}

type RegisterServiceMessage struct {
	Descriptor core.ServiceDescriptor
}

func (RegisterServiceMessage) Type() string { return TypeRegisterService }

func (m RegisterServiceMessage) Validate() error {
	if err := validateServiceName(m.Descriptor.Name); err != nil {
		return err
	}
	return commandWrapValidation(m.Descriptor.Validate(), "command: invalid service descriptor")
}

type RefreshServicesMessage struct{}

func (RefreshServicesMessage) Type() string { return TypeRefreshServices }

func validateServiceName(name string) error {
	if strings.TrimSpace(name) == "" {
		return commandValidationError("service", "service name is required")
	}
	return nil
}
