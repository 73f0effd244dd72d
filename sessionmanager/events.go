package sessionmanager

import (
	"github.com/jrsteele09/swishview/auth"
	"github.com/jrsteele09/swishview/campaigns"
	"github.com/jrsteele09/swishview/sessions"
)

// event is anything the reducer consumes. Every state change goes through one.
type event interface{}

type mountEvent struct {
	path  string
	reply chan View // answered once the mount has settled, may be nil
}

type navigateEvent struct {
	path  string
	reply chan View
}

type sessionResolvedEvent struct {
	epoch   uint64
	session *sessions.Session
	err     error
}

type sessionChangedEvent struct {
	kind    auth.EventType
	session *sessions.Session
}

type fetchCompletedEvent struct {
	epoch     uint64
	seq       uint64
	campaigns []*campaigns.Campaign
	err       error
}

type refreshEvent struct{}

type signedOutByUserEvent struct{}

type adminGateEvent struct {
	set bool
}

type reportEvent struct {
	err error
}

type snapshotEvent struct {
	reply chan View
}
