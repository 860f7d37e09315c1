// Package models defines the recalculation queue item.
package models

import (
	"time"

	"github.com/google/uuid"

	id "immuna/pkg/domain"
)

// ItemStatus is the processing state of a queue item.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemSucceeded  ItemStatus = "succeeded"
	// ItemFailed is terminal: the retry ceiling was exhausted or the error
	// was non-retryable. Terminal items are excluded from future claims and
	// surfaced in operational reporting only.
	ItemFailed ItemStatus = "failed"
)

// QueueItem is one "recalculate this registrant for this disease" work item.
// Delivery is at least once; consumers must be idempotent.
type QueueItem struct {
	ID           uuid.UUID
	RegistrantID id.RegistrantID
	Disease      id.DiseaseID
	Status       ItemStatus
	RetryCount   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PartitionKey is the stable key the batch runner hashes to assign the item
// to a partition. Items for the same registrant and disease always land in
// the same partition, so no two concurrent workers touch the same dossier.
func (q *QueueItem) PartitionKey() string {
	return q.RegistrantID.String() + "/" + q.Disease.String()
}
