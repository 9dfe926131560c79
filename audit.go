package goStage

import (
	"io"

	"github.com/MrEthical07/goStage/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one audit record emitted by the Client.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Client's dispatcher goroutine.
type AuditSink = audit.Sink

type NoOpSink = audit.NoOpSink

type ChannelSink = audit.ChannelSink

type JSONWriterSink = audit.JSONWriterSink

type ZapSink = audit.ZapSink

const (
	AuditLoginSuccess    = audit.EventLoginSuccess
	AuditLoginFailure    = audit.EventLoginFailure
	AuditLogout          = audit.EventLogout
	AuditSessionExpired  = audit.EventSessionExpired
	AuditSessionRestored = audit.EventSessionRestored
	AuditSessionPurged   = audit.EventSessionPurged
	AuditStageTransition = audit.EventStageTransition
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
