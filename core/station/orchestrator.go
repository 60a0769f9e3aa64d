package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pulsefm/config"
	"pulsefm/core/catalog"
	"pulsefm/core/queue"
	"pulsefm/core/radioerr"
	"pulsefm/logger"
	"pulsefm/model"
	"pulsefm/repository"
)

const (
	silenceSleep    = time.Second
	interTrackSleep = 100 * time.Millisecond

	promoIDPrefix = "promo_"
)

// StreamRelay is the relay surface the playback loop drives.
type StreamRelay interface {
	Connect(ctx context.Context) error
	Connected() bool
	Disconnect()
	StreamFile(ctx context.Context, path string) bool
	StreamPromo(ctx context.Context, path string) bool
	UpdateMetadata(song string)
	FetchListeners(ctx context.Context) (int, error)
}

// TrackFetcher turns a chosen track into a playable local file.
type TrackFetcher interface {
	Acquire(ctx context.Context, title, artist string, expectedDuration int, directURL string) (*model.DownloadResult, error)
}

// Blender fades a consecutive pair of spooled files into each other.
type Blender interface {
	Blend(ctx context.Context, currentPath, nextPath string) error
}

// TrackPicker chooses the next automatic track.
type TrackPicker interface {
	SelectNext(ctx context.Context) (*model.TrackMetadata, error)
}

// PromoScheduler decides when a break is due and which spots run in it.
type PromoScheduler interface {
	Due() bool
	TrackPlayed()
	Reset()
	ActivePromos(now time.Time) []model.Promotion
	MarkPlayed(id uint)
	Cleanup(now time.Time) int
}

// OrchestratorDeps carries the collaborators the playback loop drives.
// Blender may be nil to disable crossfades.
type OrchestratorDeps struct {
	State     *StateStore
	Spool     *Spool
	Queue     *queue.Queue
	Selector  TrackPicker
	Fetcher   TrackFetcher
	Relay     StreamRelay
	Blender   Blender
	Promos    PromoScheduler
	History   repository.HistoryRepository
	Blocklist repository.BlocklistRepository
	Hub       Broadcaster
	Skip      *atomic.Bool
}

// Orchestrator runs the unattended playback loop: keep the relay fed
// with one file after another, keep the next track downloading in the
// background and tell every surface what is happening.
type Orchestrator struct {
	cfg *config.Config

	state     *StateStore
	spool     *Spool
	queue     *queue.Queue
	selector  TrackPicker
	fetcher   TrackFetcher
	relay     StreamRelay
	blender   Blender
	promos    PromoScheduler
	history   repository.HistoryRepository
	blocklist repository.BlocklistRepository
	hub       Broadcaster
	tasks     *Supervisor

	skip *atomic.Bool

	// downloadMu is the single acquisition slot. The dispatcher takes
	// it and the detached download goroutine releases it.
	downloadMu sync.Mutex
	rootCtx    context.Context

	onairDir string
}

func NewOrchestrator(cfg *config.Config, deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		state:     deps.State,
		spool:     deps.Spool,
		queue:     deps.Queue,
		selector:  deps.Selector,
		fetcher:   deps.Fetcher,
		relay:     deps.Relay,
		blender:   deps.Blender,
		promos:    deps.Promos,
		history:   deps.History,
		blocklist: deps.Blocklist,
		hub:       deps.Hub,
		tasks:     NewSupervisor(),
		skip:      deps.Skip,
		onairDir:  filepath.Join(cfg.ScratchDir, "onair"),
	}
}

// Run drives the station until ctx is cancelled. It blocks.
func (o *Orchestrator) Run(ctx context.Context) {
	o.rootCtx = ctx
	if err := os.MkdirAll(o.onairDir, 0755); err != nil {
		logger.Error("failed to create on-air dir", logger.String("dir", o.onairDir), logger.ErrorField(err))
	}

	go o.pollListeners(ctx)
	go o.cleanupPromos(ctx)
	go o.trimMemory(ctx)

	logger.Info("station loop starting",
		logger.String("station", o.cfg.StationName),
		logger.Int("spooled", o.spool.Len()),
		logger.Int("queued", o.queue.Len()))

	for ctx.Err() == nil {
		o.cycle(ctx)
	}

	o.tasks.StopAll()
	o.relay.Disconnect()
	o.state.ClearNow(context.Background())
	logger.Info("station loop stopped")
}

// cycle plays exactly one thing: a promo break when one is due, then
// the spool head, or the silence file when nothing is ready.
func (o *Orchestrator) cycle(ctx context.Context) {
	if !o.relay.Connected() {
		if err := o.relay.Connect(ctx); err != nil {
			return
		}
	}

	if o.promos.Due() {
		if !o.playPromoBreak(ctx) {
			o.pause(ctx, o.cfg.ReconnectDelay)
			return
		}
	}

	o.tasks.Run(ctx, "song_downloader", o.downloadTask)

	path, fromSpool := o.spool.PopHead()
	if !fromSpool {
		path = o.cfg.SilenceFile
	}

	ok := o.relay.StreamFile(ctx, path)
	if fromSpool {
		o.discardOnAir(path)
	}

	// The roll happens even after a failed or silent stream.
	o.roll(ctx)

	if !ok {
		logger.Warn("stream write failed, reconnecting")
		o.pause(ctx, o.cfg.ReconnectDelay)
		return
	}
	if fromSpool {
		o.pause(ctx, interTrackSleep)
	} else {
		o.pause(ctx, silenceSleep)
	}
}

// roll advances the station after a stream attempt: the finished "now"
// goes to history, the staged track takes its place and every surface
// hears about it.
func (o *Orchestrator) roll(ctx context.Context) {
	o.recordHistory()

	o.state.PromoteNextToNow(ctx)
	o.hub.Broadcast(model.ActionNextComing, nil)

	now := o.state.Now()
	o.hub.Broadcast(model.ActionNowPlaying, now)
	o.relay.UpdateMetadata(o.metadataLine(now))
	o.hub.Broadcast(model.ActionQueue, o.queue.Snapshot())

	o.tasks.Run(o.rootCtx, "update_position", o.positionTask)
	o.promos.TrackPlayed()
}

// recordHistory upserts the record occupying the now slot. Re-upserts
// from silence cycles are harmless; promo spots stay out of history.
func (o *Orchestrator) recordHistory() {
	now := o.state.Now()
	if now == nil || now.Track.ID == "" || strings.HasPrefix(now.Track.ID, promoIDPrefix) {
		return
	}

	entry := &model.HistoryEntry{
		TrackID:    now.Track.ID,
		Title:      now.Track.Title,
		Artist:     now.Track.Artist,
		Album:      now.Track.Album,
		ArtworkURL: now.Track.ArtworkURL,
		PlayedAt:   now.PlayedAt,
	}
	if err := o.history.Upsert(entry); err != nil {
		logger.Error("history upsert failed",
			logger.String("trackId", now.Track.ID),
			logger.ErrorField(err))
	}
}

func (o *Orchestrator) metadataLine(now *model.PlaybackRecord) string {
	if now == nil || now.Track.Title == "" {
		return "Silence - " + o.cfg.StationName
	}
	return now.Track.DisplayName()
}

// playPromoBreak streams every active spot back to back. Spots ignore
// the skip flag and never enter the play history. Returns false when a
// relay write failed mid-break.
func (o *Orchestrator) playPromoBreak(ctx context.Context) bool {
	defer o.promos.Reset()

	spots := o.promos.ActivePromos(time.Now())
	if len(spots) == 0 {
		return true
	}
	logger.Info("promo break starting", logger.Int("spots", len(spots)))

	for _, spot := range spots {
		rec := &model.PlaybackRecord{
			Track: model.TrackMetadata{
				ID:     fmt.Sprintf("%s%d", promoIDPrefix, spot.ID),
				Title:  spot.Title,
				Artist: spot.Promoter,
				Album:  spot.Description,
			},
			Requester:   "Station",
			App:         "promo",
			StationName: o.cfg.StationName,
			PlayedAt:    time.Now(),
		}
		o.state.SetNow(ctx, rec)
		o.hub.Broadcast(model.ActionNowPlaying, rec)
		o.relay.UpdateMetadata(promoMetadataLine(&spot))

		if !o.relay.StreamPromo(ctx, spot.FilePath) {
			logger.Warn("promo stream failed", logger.String("title", spot.Title))
			return false
		}
		o.promos.MarkPlayed(spot.ID)
	}
	return true
}

func promoMetadataLine(spot *model.Promotion) string {
	if spot.Promoter == "" {
		return spot.Title
	}
	return fmt.Sprintf("%s - %s", spot.Promoter, spot.Title)
}

// downloadTask stages the next track and hands the byte work to a
// detached goroutine. The supervisor replaces this task every cycle,
// so nothing that must outlive a cycle may run on taskCtx.
func (o *Orchestrator) downloadTask(taskCtx context.Context) {
	select {
	case <-taskCtx.Done():
		return
	case <-time.After(o.cfg.DownloadTaskDelay):
	}

	if o.state.Next() != nil {
		return // a track is already staged
	}
	if !o.downloadMu.TryLock() {
		return // an acquisition is in flight
	}

	track, requester, app, err := o.pickNext(taskCtx)
	if err != nil || track == nil {
		o.downloadMu.Unlock()
		switch {
		case errors.Is(err, catalog.ErrCatalogEmpty):
			logger.Debug("catalog empty, staying silent")
		case err != nil:
			logger.Error("track selection failed", logger.ErrorField(err))
		}
		return
	}

	rec := &model.PlaybackRecord{
		Track:        *track,
		Requester:    requester,
		App:          app,
		StationName:  o.cfg.StationName,
		RemainingSec: track.DurationSec,
	}
	o.state.SetNext(o.rootCtx, rec)
	o.hub.Broadcast(model.ActionNextComing, rec)

	// The mutex transfers to the goroutine so a replaced dispatcher
	// cannot abort a download already under way.
	go o.acquireAndSpool(o.rootCtx, rec)
}

// pickNext takes the queue head if one is waiting, else asks the
// selector. Queue entries are settled only after their file lands.
func (o *Orchestrator) pickNext(ctx context.Context) (*model.TrackMetadata, string, string, error) {
	if head := o.queue.Head(); head != nil {
		track := head.Track
		return &track, head.Requester, head.App, nil
	}

	track, err := o.selector.SelectNext(ctx)
	if err != nil {
		return nil, "", "", err
	}
	return track, model.RequesterAuto, "", nil
}

// acquireAndSpool downloads the staged track and appends its on-air
// copy to the spool. It owns the download mutex and runs on the root
// context.
func (o *Orchestrator) acquireAndSpool(ctx context.Context, rec *model.PlaybackRecord) {
	defer o.downloadMu.Unlock()

	res, err := o.fetcher.Acquire(ctx, rec.Track.Title, rec.Track.Artist,
		rec.Track.DurationSec, rec.Track.DirectSourceURL())
	if err != nil {
		logger.Error("acquisition failed, unstaging track",
			logger.String("trackId", rec.Track.ID),
			logger.String("title", rec.Track.Title),
			logger.ErrorField(err))
		o.unstage(ctx, rec)
		return
	}

	onAir, err := o.copyOnAir(res.Path)
	if err != nil {
		logger.Error("failed to stage on-air copy",
			logger.String("path", res.Path), logger.ErrorField(err))
		o.unstage(ctx, rec)
		return
	}

	if prev, pending := o.spool.Tail(); pending && o.blender != nil {
		if err := o.blender.Blend(ctx, prev, onAir); err != nil {
			logger.Warn("crossfade failed, tracks will hard-cut", logger.ErrorField(err))
		}
	}

	if !o.spool.Append(onAir) {
		logger.Error("spool refused the staged file", logger.String("path", onAir))
		o.discardOnAir(onAir)
		o.unstage(ctx, rec)
		return
	}

	if res.DurationSec > 0 {
		o.state.UpdateNextDuration(ctx, rec.Track.ID, res.DurationSec)
	}

	if o.queue.RemoveTrack(rec.Track.ID) {
		o.hub.Broadcast(model.ActionQueue, o.queue.Snapshot())
	}

	logger.Info("next track ready",
		logger.String("title", rec.Track.Title),
		logger.String("source", res.Source),
		logger.Int("durationSec", res.DurationSec))
}

// unstage clears the next slot, but only while our track still holds
// it; a silence cycle may already have promoted it away.
func (o *Orchestrator) unstage(ctx context.Context, rec *model.PlaybackRecord) {
	if next := o.state.Next(); next != nil && next.Track.ID == rec.Track.ID {
		o.state.SetNext(ctx, nil)
		o.hub.Broadcast(model.ActionNextComing, nil)
	}
}

// copyOnAir copies an acquired file into the on-air directory. Spooled
// files get mutated by the crossfader and deleted after playback, so
// the cache copy must never be spooled directly.
func (o *Orchestrator) copyOnAir(cachePath string) (string, error) {
	if err := os.MkdirAll(o.onairDir, 0755); err != nil {
		return "", err
	}
	dest := filepath.Join(o.onairDir,
		fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(cachePath)))

	in, err := os.Open(cachePath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

func (o *Orchestrator) discardOnAir(path string) {
	if filepath.Dir(path) != o.onairDir {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove on-air copy",
			logger.String("path", path), logger.ErrorField(err))
	}
}

// positionTask ticks the elapsed position of the playing track once a
// second and stops one second short of its end.
func (o *Orchestrator) positionTask(taskCtx context.Context) {
	now := o.state.Now()
	if now == nil || now.Track.DurationSec <= 0 {
		return
	}
	duration := now.Track.DurationSec

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for elapsed := now.PositionSec; elapsed < duration-1; {
		select {
		case <-taskCtx.Done():
			return
		case <-ticker.C:
			elapsed++
			o.state.UpdateProgress(taskCtx, elapsed, duration-elapsed)
		}
	}
}

// RequestSkip cuts the playing track short. Promo spots ignore the
// flag, so a skip landing during a break only ends the next track.
func (o *Orchestrator) RequestSkip(role string) error {
	if !model.PrivilegedRole(role) {
		return radioerr.E(radioerr.CodeNotPrivileged, "only a dj or moderator can skip")
	}

	if !o.downloadMu.TryLock() {
		return radioerr.E(radioerr.CodeDownloadBusy, "cannot skip while the next track is downloading")
	}
	o.downloadMu.Unlock()

	now := o.state.Now()
	if now == nil || now.Track.ID == "" {
		return radioerr.E(radioerr.CodeNoTrackPlaying, "nothing is playing")
	}

	o.skip.Store(true)
	logger.Info("skip requested",
		logger.String("trackId", now.Track.ID),
		logger.String("title", now.Track.Title))
	return nil
}

// BlockCurrent puts the playing track on the blocklist and skips it.
func (o *Orchestrator) BlockCurrent(role, blockedBy string) error {
	if !model.PrivilegedRole(role) {
		return radioerr.E(radioerr.CodeNotPrivileged, "only a dj or moderator can block")
	}

	if !o.downloadMu.TryLock() {
		return radioerr.E(radioerr.CodeDownloadBusy, "cannot block while the next track is downloading")
	}
	o.downloadMu.Unlock()

	now := o.state.Now()
	if now == nil || now.Track.ID == "" {
		return radioerr.E(radioerr.CodeNoTrackPlaying, "nothing is playing")
	}

	blocked, err := o.blocklist.IsBlocked(now.Track.ID)
	if err != nil {
		return fmt.Errorf("blocklist lookup: %w", err)
	}
	if blocked {
		return radioerr.E(radioerr.CodeAlreadyBlocked, "this track is already blocked")
	}

	if err := o.blocklist.Add(&model.BlockedTrack{
		TrackID:   now.Track.ID,
		Title:     now.Track.Title,
		Artist:    now.Track.Artist,
		BlockedBy: blockedBy,
		BlockedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("blocklist insert: %w", err)
	}

	o.skip.Store(true)
	logger.Info("track blocked on air",
		logger.String("trackId", now.Track.ID),
		logger.String("title", now.Track.Title),
		logger.String("by", blockedBy))
	return nil
}

func (o *Orchestrator) pollListeners(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.ListenerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := o.relay.FetchListeners(ctx)
			if err != nil {
				// Report zero during an outage, not the last good count.
				logger.Debug("listener poll failed", logger.ErrorField(err))
				count = 0
			}
			o.hub.Broadcast(model.ActionListeners, map[string]int{"listeners": count})
		}
	}
}

func (o *Orchestrator) cleanupPromos(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.PromoCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := o.promos.Cleanup(time.Now()); removed > 0 {
				logger.Info("expired promos removed", logger.Int("count", removed))
			}
		}
	}
}

// trimMemory returns freed heap to the OS on a slow cadence. Long
// ffmpeg-heavy processes otherwise sit on their high-water mark.
func (o *Orchestrator) trimMemory(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.MemoryTrimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			debug.FreeOSMemory()
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			logger.Debug("memory trimmed",
				logger.Int64("allocMB", int64(stats.Alloc/1024/1024)),
				logger.Int64("sysMB", int64(stats.Sys/1024/1024)),
				logger.Int("numGC", int(stats.NumGC)))
		}
	}
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
