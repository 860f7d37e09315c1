// Package notify dispatches registrant notifications. Delivery itself (SMS,
// mail, letter) lives behind an external gateway; this package decides
// whether to hand a notification over at all.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	dossiermodels "immuna/internal/dossier/models"
	"immuna/internal/recalc/ports"
)

// LogNotifier writes notifications to the structured log. It stands in for
// the delivery gateway in development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

var _ ports.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) BoosterUnlocked(ctx context.Context, d *dossiermodels.VaccinationDossier) error {
	n.logger.InfoContext(ctx, "notify: booster unlocked",
		"registrant_id", d.RegistrantID, "disease", d.Disease)
	return nil
}

// DedupTTL is how long a sent notification suppresses repeats. Long enough to
// cover queue retries and overlapping sweep runs, short enough that a genuine
// future unlock (with a new unlock date in the key) is never shadowed.
const DedupTTL = 14 * 24 * time.Hour

// Deduper wraps a Notifier with a Redis SETNX guard so at-least-once
// reprocessing never notifies the same unlock twice.
type Deduper struct {
	next   ports.Notifier
	client *redis.Client
	logger *slog.Logger
}

func NewDeduper(next ports.Notifier, client *redis.Client, logger *slog.Logger) *Deduper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduper{next: next, client: client, logger: logger}
}

var _ ports.Notifier = (*Deduper)(nil)

func (d *Deduper) BoosterUnlocked(ctx context.Context, dossier *dossiermodels.VaccinationDossier) error {
	key := dedupKey(dossier)
	ok, err := d.client.SetNX(ctx, key, 1, DedupTTL).Result()
	if err != nil {
		// Redis down must not lose the notification; deliver and accept the
		// small chance of a duplicate.
		d.logger.WarnContext(ctx, "notification dedup unavailable, delivering anyway",
			"key", key, "error", err)
		return d.next.BoosterUnlocked(ctx, dossier)
	}
	if !ok {
		d.logger.DebugContext(ctx, "notification suppressed as duplicate", "key", key)
		return nil
	}
	return d.next.BoosterUnlocked(ctx, dossier)
}

func dedupKey(d *dossiermodels.VaccinationDossier) string {
	unlock := int64(0)
	if d.Protection != nil && d.Protection.NextDoseUnlockedFrom != nil {
		unlock = d.Protection.NextDoseUnlockedFrom.Unix()
	}
	return fmt.Sprintf("notify:booster:%s:%s:%d", d.RegistrantID, d.Disease, unlock)
}
