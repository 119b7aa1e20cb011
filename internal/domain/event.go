package domain

import "time"

// ChangeType describes the lifecycle transition carried by an event.
type ChangeType string

const (
	ChangeCreated ChangeType = "CREATED"
	ChangeUpdated ChangeType = "UPDATED"
	ChangeDeleted ChangeType = "DELETED"
)

// ConfigEvent is the envelope wrapping configuration change payloads.
// Publishers may also send the payload flat, without the envelope;
// the event listeners tolerate both shapes.
type ConfigEvent struct {
	EventID       string         `json:"eventId" mapstructure:"eventId"`
	EventType     string         `json:"eventType" mapstructure:"eventType"`
	CorrelationID string         `json:"correlationId" mapstructure:"correlationId"`
	Timestamp     time.Time      `json:"timestamp" mapstructure:"timestamp"`
	Payload       map[string]any `json:"payload" mapstructure:"payload"`
}

// CollectionChangedPayload carries a collection lifecycle change.
type CollectionChangedPayload struct {
	ID         string     `json:"id" mapstructure:"id"`
	Name       string     `json:"name" mapstructure:"name"`
	ChangeType ChangeType `json:"changeType" mapstructure:"changeType"`
}

// WorkerAssignmentPayload carries a collection-to-worker assignment change.
// WorkerBaseURL identifies the emitting instance only; routing always uses
// the configured backend URL.
type WorkerAssignmentPayload struct {
	WorkerID       string     `json:"workerId" mapstructure:"workerId"`
	CollectionID   string     `json:"collectionId" mapstructure:"collectionId"`
	CollectionName string     `json:"collectionName" mapstructure:"collectionName"`
	WorkerBaseURL  string     `json:"workerBaseUrl" mapstructure:"workerBaseUrl"`
	ChangeType     ChangeType `json:"changeType" mapstructure:"changeType"`
}

// RecordChangePayload carries a data change on a single record.
type RecordChangePayload struct {
	EventID        string     `json:"eventId" mapstructure:"eventId"`
	TenantID       string     `json:"tenantId" mapstructure:"tenantId"`
	CollectionName string     `json:"collectionName" mapstructure:"collectionName"`
	RecordID       string     `json:"recordId" mapstructure:"recordId"`
	ChangeType     ChangeType `json:"changeType" mapstructure:"changeType"`
}
