package scrape

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AustinZ21/Privyloop-sub001/internal/registry"
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
	"github.com/AustinZ21/Privyloop-sub001/internal/store"
	"github.com/AustinZ21/Privyloop-sub001/internal/template"
)

// finish runs post-processing for a successful scrape. If the pipeline
// fails, the scraped data is not lost: a best-effort template is created and
// the result is stored raw, uncompressed — availability over storage
// efficiency. Work for one (userID, platformID) pair is serialised so
// concurrent scrapes never diff against the same stale baseline.
func (e *Engine) finish(ctx context.Context, platform *registry.Platform, sc *Context, res *Result) {
	unlock := e.locks.lock(sc.UserID + "\x00" + platform.ID)
	defer unlock()

	if err := e.process(ctx, platform, sc, res); err != nil {
		e.logger.Warn("engine: post-processing failed, storing raw",
			"platform", platform.Slug, "user_id", sc.UserID, "error", err)
		e.storeRaw(ctx, platform, sc, res)
	}
}

// process is the normal pipeline: find-or-create template → compress →
// stats → diff against the previous snapshot → persist → bump usage.
func (e *Engine) process(ctx context.Context, platform *registry.Platform, sc *Context, res *Result) error {
	t, err := e.templates.FindOrCreate(ctx, platform.ID, res.Data)
	if err != nil {
		return err
	}

	compressed := template.Compress(t, res.Data)

	if stats, err := template.Stats(t, res.Data); err == nil {
		e.logger.Debug("engine: compression",
			"platform", platform.Slug, "template_id", t.ID,
			"ratio", stats.CompressionRatio, "savings", stats.Savings)
	}

	prev, err := e.store.LatestSnapshot(ctx, sc.UserID, platform.ID)
	if err != nil {
		return err
	}
	var changes store.ChangeSet
	if prev != nil {
		prevFull, err := e.previousFull(ctx, prev)
		if err != nil {
			return err
		}
		changes = diffSettings(prevFull, res.Data)
	}

	snap := e.newSnapshot(platform, sc, res, compressed)
	snap.TemplateID = t.ID
	snap.Changes = changes
	snap.HasChanges = len(changes) > 0

	if err := e.store.InsertSnapshot(ctx, snap); err != nil {
		return err
	}
	if err := e.templates.RecordUsage(ctx, t.ID); err != nil {
		// The snapshot is safe; a missed usage bump is not worth degrading.
		e.logger.Warn("engine: usage bump failed", "template_id", t.ID, "error", err)
	}

	e.logger.Info("engine: snapshot stored",
		"platform", platform.Slug, "user_id", sc.UserID,
		"snapshot_id", snap.ID, "template_id", t.ID, "has_changes", snap.HasChanges)
	return nil
}

// storeRaw is the degraded path: try a best-effort template, then store the
// uncompressed extraction. Errors here are logged, not returned — there is
// nothing further to fall back to.
func (e *Engine) storeRaw(ctx context.Context, platform *registry.Platform, sc *Context, res *Result) {
	snap := e.newSnapshot(platform, sc, res, res.Data)
	snap.ScanStatus = store.ScanDegraded

	if t, err := e.templates.CreateNewTemplate(ctx, platform.ID, res.Data); err == nil {
		snap.TemplateID = t.ID
	} else {
		e.logger.Warn("engine: best-effort template failed",
			"platform", platform.Slug, "error", err)
	}

	if err := e.store.InsertSnapshot(ctx, snap); err != nil {
		e.logger.Error("engine: raw snapshot insert failed",
			"platform", platform.Slug, "user_id", sc.UserID, "error", err)
	}
}

func (e *Engine) newSnapshot(platform *registry.Platform, sc *Context, res *Result, data settings.UserSettings) *store.Snapshot {
	snap := &store.Snapshot{
		ID:         e.newSnapID(),
		UserID:     sc.UserID,
		PlatformID: platform.ID,
		Settings:   data,
		ScanMethod: sc.Method,
		ScanStatus: store.ScanCompleted,
	}
	if m := res.Metadata; m != nil {
		snap.ScanID = m.ScanID
		snap.DurationMs = m.DurationMs
		snap.CompletionRate = m.CompletionRate
		snap.Confidence = m.Confidence
		snap.ScannedAt = m.CompletedAt
	}
	return snap
}

// previousFull rebuilds the previous snapshot's full settings. Compressed
// snapshots are decompressed against their template; degraded or
// template-less snapshots already hold full values.
func (e *Engine) previousFull(ctx context.Context, prev *store.Snapshot) (settings.UserSettings, error) {
	if prev.TemplateID == "" || prev.ScanStatus == store.ScanDegraded {
		return prev.Settings, nil
	}
	t, err := e.templates.GetTemplate(ctx, prev.TemplateID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return prev.Settings, nil
	}
	return template.Decompress(t, prev.Settings), nil
}

// diffSettings computes the field-level change-set: every (category, setting)
// path in the new full result is compared against the previous snapshot's
// full value at the same path, by string-serialised deep comparison. Both
// sides must be decompressed — comparing deltas would report defaults as
// appearing out of nowhere.
func diffSettings(prevFull, next settings.UserSettings) store.ChangeSet {
	now := time.Now().UnixMilli()

	changes := make(store.ChangeSet)
	for catID, values := range next {
		for setID, v := range values {
			newJSON := marshalValue(v)

			oldJSON := json.RawMessage("null")
			if old, ok := prevFull.Get(catID, setID); ok {
				oldJSON = marshalValue(old)
			}

			if string(oldJSON) == string(newJSON) {
				continue
			}
			if changes[catID] == nil {
				changes[catID] = make(map[string]store.Change)
			}
			changes[catID][setID] = store.Change{
				OldValue:   oldJSON,
				NewValue:   newJSON,
				ChangeType: "unknown",
				DetectedAt: now,
			}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func marshalValue(v settings.Value) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
