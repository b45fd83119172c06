package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ServiceDispatcher = (*Dispatcher)(nil)
	_ Engine            = (*StandardEngine)(nil)
	_ Engine            = (*EntityAutoEngine)(nil)
	_ DescriptorSource  = DescriptorSourceFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
