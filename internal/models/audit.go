package models

import "time"

// AuditAction classifies an audit log entry
type AuditAction string

const (
	AuditCreated           AuditAction = "created"
	AuditAdvanced          AuditAction = "advanced"
	AuditApproved          AuditAction = "approved"
	AuditRejected          AuditAction = "rejected"
	AuditEscalated         AuditAction = "escalated"
	AuditCancelled         AuditAction = "cancelled"
	AuditSLAWarning        AuditAction = "sla_warning"
	AuditReminderSent      AuditAction = "reminder_sent"
	AuditBreachUnescalated AuditAction = "sla_breach_unescalated"
)

// AuditLogEntry is one append-only record of an engine or scheduler
// action. Entries are never updated or deleted; they are the sole
// durable evidence of what the engine did.
type AuditLogEntry struct {
	ID         string      `json:"id"`
	InstanceID string      `json:"instance_id"`
	Action     AuditAction `json:"action"`
	Actor      string      `json:"actor,omitempty"`
	Details    string      `json:"details,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
