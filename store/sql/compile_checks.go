package sqlstore

import "github.com/goliatone/go-dispatcher/core"

var (
	_ core.Persistence      = (*Persistence)(nil)
	_ core.Transaction      = (*Transaction)(nil)
	_ core.EntityStore      = (*EntityStore)(nil)
	_ core.EntityStore      = (*Persistence)(nil)
	_ core.DescriptorSource = (*DescriptorStore)(nil)
	_ core.DescriptorSource = (*CachedDescriptorSource)(nil)
	_ core.CallRecorder     = (*CallLogStore)(nil)
)
