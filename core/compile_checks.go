package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Event = ContentEvent{}
	_ Event = InteractiveEvent{}
	_ Event = ReactionEvent{}
	_ Event = StatusEvent{}
	_ Event = ErrorEvent{}
	_ Event = UnsupportedEvent{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
