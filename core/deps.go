package core

import "pkt.systems/pslog"

// SessionDeps captures the collaborators of a console session.
type SessionDeps struct {
	Runner    Runner
	Slots     SlotStore
	EventSink EventSink
	Logger    pslog.Logger
}

// SlotStore persists the remote session id across restarts.
type SlotStore interface {
	Load(scope, key string) (string, bool, error)
	Save(scope, key, value string) error
	Delete(scope, key string) error
}
