package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// OddsSource is the narrow slice of the snapshot store the archiver reads.
type OddsSource interface {
	AllOdds() map[string][]domain.Event
}

// Archiver periodically serializes the merged odds view per sport and
// uploads it to S3-compatible storage. Archives are advisory; an upload
// failure is logged and the next tick tries again.
type Archiver struct {
	writer   *Writer
	source   OddsSource
	interval time.Duration
	prefix   string
	logger   *slog.Logger
}

// NewArchiver creates an Archiver uploading through writer every interval.
func NewArchiver(writer *Writer, source OddsSource, interval time.Duration, prefix string, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if prefix == "" {
		prefix = "snapshots"
	}
	return &Archiver{
		writer:   writer,
		source:   source,
		interval: interval,
		prefix:   prefix,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Run uploads snapshots on a fixed interval until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := a.ArchiveOnce(ctx, now.UTC()); err != nil {
				a.logger.Warn("snapshot archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ArchiveOnce uploads the current odds view, one object per sport, keyed as
// <prefix>/<sport>/<timestamp>.json. Sports with no events are skipped.
func (a *Archiver) ArchiveOnce(ctx context.Context, at time.Time) error {
	view := a.source.AllOdds()

	archived := 0
	for sportKey, events := range view {
		if len(events) == 0 {
			continue
		}
		buf, err := json.Marshal(events)
		if err != nil {
			return fmt.Errorf("s3blob: marshal %s snapshot: %w", sportKey, err)
		}
		path := archivePath(a.prefix, sportKey, at)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
			return err
		}
		archived++
	}

	if archived > 0 {
		a.logger.Debug("snapshots archived", slog.Int("sports", archived))
	}
	return nil
}

// archivePath builds the S3 key for one sport's snapshot.
//
//	snapshots/basketball_nba/2026-01-02T15-04-05Z.json
func archivePath(prefix, sportKey string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", prefix, sportKey, at.Format("2006-01-02T15-04-05Z"))
}
