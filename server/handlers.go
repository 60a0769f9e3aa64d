package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pulsefm/config"
	"pulsefm/core/catalog"
	"pulsefm/core/queue"
	"pulsefm/core/radioerr"
	"pulsefm/core/session"
	"pulsefm/core/station"
	"pulsefm/logger"
	"pulsefm/model"
	"pulsefm/repository"

	"github.com/gorilla/mux"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// StationControl is the subset of orchestrator actions exposed over
// HTTP.
type StationControl interface {
	RequestSkip(role string) error
	BlockCurrent(role, blockedBy string) error
}

// ListenerCounter is the one relay capability the HTTP surface needs.
type ListenerCounter interface {
	FetchListeners(ctx context.Context) (int, error)
}

// APIHandler serves the station control API.
type APIHandler struct {
	cfg       *config.Config
	state     *station.StateStore
	queue     *queue.Queue
	subs      *station.Submissions
	control   StationControl
	relay     ListenerCounter
	history   repository.HistoryRepository
	blocklist repository.BlocklistRepository
	resolver  station.MetadataResolver
	sessions  *session.Manager
	hub       *session.Hub
}

// NewAPIHandler wires the control API to the station components.
func NewAPIHandler(
	cfg *config.Config,
	state *station.StateStore,
	q *queue.Queue,
	subs *station.Submissions,
	control StationControl,
	relay ListenerCounter,
	history repository.HistoryRepository,
	blocklist repository.BlocklistRepository,
	resolver station.MetadataResolver,
	sessions *session.Manager,
	hub *session.Hub,
) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		state:     state,
		queue:     q,
		subs:      subs,
		control:   control,
		relay:     relay,
		history:   history,
		blocklist: blocklist,
		resolver:  resolver,
		sessions:  sessions,
		hub:       hub,
	}
}

// writeJSON writes v with the given HTTP status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("response encode failed", logger.ErrorField(err))
	}
}

// writeBadRequest rejects malformed input before it reaches any
// component.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error": msg,
		"code":  http.StatusBadRequest,
	})
}

// writeRejection maps an error to the wire. Coded rejections keep their
// numeric code as the HTTP status, which is what the station's clients
// were built against; anything uncoded is an internal error.
func writeRejection(w http.ResponseWriter, err error) {
	var re *radioerr.Error
	if errors.As(err, &re) {
		writeJSON(w, re.ErrCode, map[string]interface{}{
			"error": re.Message,
			"code":  re.ErrCode,
		})
		return
	}
	logger.Error("request failed", logger.ErrorField(err))
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": "internal server error",
		"code":  http.StatusInternalServerError,
	})
}

// NowPlayingHandler returns the "now" record, null when the deck is
// empty.
func (h *APIHandler) NowPlayingHandler(w http.ResponseWriter, r *http.Request) {
	now := h.state.Now()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    now != nil,
		"nowPlaying": now,
	})
}

// NextComingHandler returns the staged "next" record, null until an
// acquisition stages one.
func (h *APIHandler) NextComingHandler(w http.ResponseWriter, r *http.Request) {
	next := h.state.Next()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    next != nil,
		"nextComing": next,
	})
}

// HistoryHandler returns recent plays, newest first.
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.history.Recent(limit)
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"history": entries,
	})
}

// QueueHandler returns the pending requests in position order.
func (h *APIHandler) QueueHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"queue":   h.queue.Snapshot(),
	})
}

type submitRequest struct {
	TrackID     string `json:"trackId"`
	SourceURL   string `json:"sourceUrl"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	DurationSec int    `json:"durationSec"`
	Requester   string `json:"requester"`
	App         string `json:"app"`
}

// SubmitHandler queues a listener request. A body carrying a sourceUrl
// is an external submission, otherwise trackId names a catalog track.
func (h *APIHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Requester == "" {
		writeBadRequest(w, "requester is required")
		return
	}

	var (
		entry *model.QueueEntry
		err   error
	)
	if req.SourceURL != "" {
		entry, err = h.subs.SubmitExternal(r.Context(), req.SourceURL, req.Title, req.Artist, req.DurationSec, req.Requester, req.App)
	} else {
		entry, err = h.subs.SubmitRequest(r.Context(), req.TrackID, req.Requester, req.App)
	}
	if err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    entry,
	})
}

// RemoveFromQueueHandler drops a request by its dense position. Only
// the original requester or a privileged role may remove it.
func (h *APIHandler) RemoveFromQueueHandler(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(mux.Vars(r)["position"])
	if err != nil {
		writeBadRequest(w, "position must be an integer")
		return
	}

	requester := r.URL.Query().Get("requester")
	role := h.roleFromRequest(r)

	if err := h.subs.Remove(position, requester, model.PrivilegedRole(role)); err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// SkipHandler cuts the playing track short. DJ or moderator only.
func (h *APIHandler) SkipHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.control.RequestSkip(h.roleFromRequest(r)); err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "skipping current track",
	})
}

type blockRequest struct {
	BlockedBy string `json:"blockedBy"`
}

// BlockCurrentHandler blocks whatever is on air and skips it.
func (h *APIHandler) BlockCurrentHandler(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := h.control.BlockCurrent(h.roleFromRequest(r), req.BlockedBy); err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "current track blocked",
	})
}

// BlocklistHandler lists blocked tracks, newest first.
func (h *APIHandler) BlocklistHandler(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.blocklist.All()
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"blocklist": blocked,
	})
}

type blockTrackRequest struct {
	TrackID   string `json:"trackId"`
	BlockedBy string `json:"blockedBy"`
}

// BlockTrackHandler blocks a catalog track by its ID. DJ or moderator
// only. The metadata snapshot comes from the resolver so the listing
// stays readable after the track leaves the catalog.
func (h *APIHandler) BlockTrackHandler(w http.ResponseWriter, r *http.Request) {
	role := h.roleFromRequest(r)
	if !model.PrivilegedRole(role) {
		writeRejection(w, radioerr.E(radioerr.CodeNotPrivileged, "only a dj or moderator can block"))
		return
	}

	var req blockTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.TrackID == "" {
		writeRejection(w, radioerr.E(radioerr.CodeInvalidTrackID, "provide a valid track id"))
		return
	}

	blocked, err := h.blocklist.IsBlocked(req.TrackID)
	if err != nil {
		writeRejection(w, err)
		return
	}
	if blocked {
		writeRejection(w, radioerr.E(radioerr.CodeAlreadyBlocked, "this track is already blocked"))
		return
	}

	track, err := h.resolver.LookupByID(r.Context(), req.TrackID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeRejection(w, radioerr.Ef(radioerr.CodeInvalidTrackID, "no track with id %s", req.TrackID))
			return
		}
		writeRejection(w, err)
		return
	}

	if err := h.blocklist.Add(&model.BlockedTrack{
		TrackID:   track.ID,
		Title:     track.Title,
		Artist:    track.Artist,
		BlockedBy: req.BlockedBy,
		BlockedAt: time.Now(),
	}); err != nil {
		writeRejection(w, err)
		return
	}

	logger.Info("track blocked",
		logger.String("trackId", track.ID),
		logger.String("title", track.Title),
		logger.String("by", req.BlockedBy))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// UnblockHandler removes a blocklist entry by track ID, or by 1-based
// index into the newest-first listing when the key is numeric. DJ or
// moderator only.
func (h *APIHandler) UnblockHandler(w http.ResponseWriter, r *http.Request) {
	role := h.roleFromRequest(r)
	if !model.PrivilegedRole(role) {
		writeRejection(w, radioerr.E(radioerr.CodeNotPrivileged, "only a dj or moderator can unblock"))
		return
	}

	key := mux.Vars(r)["key"]
	trackID := key

	if index, err := strconv.Atoi(key); err == nil {
		blocked, err := h.blocklist.All()
		if err != nil {
			writeRejection(w, err)
			return
		}
		if index < 1 || index > len(blocked) {
			writeRejection(w, radioerr.Ef(radioerr.CodeIndexMissing, "no blocked track at index %d", index))
			return
		}
		trackID = blocked[index-1].TrackID
	} else {
		isBlocked, err := h.blocklist.IsBlocked(trackID)
		if err != nil {
			writeRejection(w, err)
			return
		}
		if !isBlocked {
			writeRejection(w, radioerr.E(radioerr.CodeNotBlocked, "this track is not blocked"))
			return
		}
	}

	if err := h.blocklist.Remove(trackID); err != nil {
		writeRejection(w, err)
		return
	}

	logger.Info("track unblocked", logger.String("trackId", trackID))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ListenersHandler polls the relay for the live listener count.
func (h *APIHandler) ListenersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	count, err := h.relay.FetchListeners(ctx)
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"listeners": count,
	})
}

// HealthHandler answers liveness probes.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"station": h.cfg.StationName,
	})
}
