package service

import (
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/queue"
)

// Auditor receives audit events.  Implementations must return quickly and
// must not fail the caller; queue.Publisher and metrics.Metrics qualify.
type Auditor interface {
	Record(ev queue.AuthEvent)
}

// Auditors fans one event out to several sinks.  A panicking sink is
// contained so the calling operation still succeeds.
type Auditors []Auditor

func (a Auditors) Record(ev queue.AuthEvent) {
	for _, sink := range a {
		func() {
			defer func() { _ = recover() }()
			sink.Record(ev)
		}()
	}
}

// LogAuditor writes each event to the structured application log.
type LogAuditor struct{ Log *logrus.Logger }

func (l LogAuditor) Record(ev queue.AuthEvent) {
	fields := logrus.Fields{"event": string(ev.Type)}
	if ev.UserID != "" {
		fields["user_id"] = ev.UserID
	}
	if ev.ActorID != "" {
		fields["actor_id"] = ev.ActorID
	}
	if ev.SessionID != "" {
		fields["session_id"] = ev.SessionID
	}
	for k, v := range ev.Detail {
		fields[k] = v
	}
	l.Log.WithFields(fields).Info("audit")
}

type nopAuditor struct{}

func (nopAuditor) Record(queue.AuthEvent) {}
