package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deptfile/file-management/internal"
	idem "github.com/deptfile/file-management/internal/core/datamodel/idempotency"
)

// HeaderKey is the client-supplied idempotency key header.
const HeaderKey = "Idempotency-Key"

const maxStoredBody = 64 << 10 // response snapshot cap

// ErrDuplicateRecord is returned by Repository.Create when another request
// already inserted a record for the same (actor, scope, key).
var ErrDuplicateRecord = errors.New("idempotency: record already exists")

type Repository interface {
	Find(ctx context.Context, actorID int64, scope, key string) (*idem.Record, error)
	Create(ctx context.Context, record *idem.Record) error
	MarkCompleted(ctx context.Context, id int64, responseCode int, responseBody string) error
	MarkFailed(ctx context.Context, id int64, responseCode int) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Guard deduplicates mutating requests per (actor, scope, key). At most one
// side-effecting execution ever happens for a tuple; retries with the same
// payload replay the stored response, retries with a different payload are
// rejected.
type Guard struct {
	store  Repository
	ttl    time.Duration
	logger *slog.Logger
}

func NewGuard(store Repository, ttl time.Duration, logger *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{store: store, ttl: ttl, logger: logger}
}

// Wrap guards all unsafe methods routed through it under the given scope.
// Safe methods pass through untouched.
func (g *Guard) Wrap(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			g.handle(scope, next, w, r)
		})
	}
}

func (g *Guard) handle(scope string, next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := strings.TrimSpace(r.Header.Get(HeaderKey))
	if key == "" {
		writeAppError(w, internal.ErrIdempotencyKeyMissing)
		return
	}

	hash, err := Fingerprint(r)
	if err != nil {
		g.logger.Error("failed to fingerprint request", "scope", scope, "error", err)
		writeAppError(w, internal.NewInternalError("failed to read request", err))
		return
	}

	actorID := internal.UserIDFromContext(ctx)

	record, err := g.store.Find(ctx, actorID, scope, key)
	if err != nil {
		g.logger.Error("idempotency lookup failed", "scope", scope, "error", err)
		writeAppError(w, internal.NewInternalError("idempotency lookup failed", err))
		return
	}

	if record == nil {
		record = &idem.Record{
			ActorID:     actorID,
			Scope:       scope,
			Key:         key,
			RequestHash: hash,
			Status:      idem.StatusInProgress,
			ExpiresAt:   time.Now().Add(g.ttl),
		}
		err = g.store.Create(ctx, record)
		if errors.Is(err, ErrDuplicateRecord) {
			// lost the race with a concurrent retry; treat as found
			record, err = g.store.Find(ctx, actorID, scope, key)
			if err == nil && record != nil {
				g.replayOrReject(w, record, hash, scope)
				return
			}
		}
		if err != nil {
			g.logger.Error("failed to create idempotency record", "scope", scope, "error", err)
			writeAppError(w, internal.NewInternalError("idempotency record creation failed", err))
			return
		}

		g.execute(scope, record, next, w, r)
		return
	}

	g.replayOrReject(w, record, hash, scope)
}

func (g *Guard) replayOrReject(w http.ResponseWriter, record *idem.Record, hash, scope string) {
	if record.RequestHash != hash {
		g.logger.Warn("idempotency key reused with different payload",
			"scope", scope, "record_id", record.ID)
		writeAppError(w, internal.ErrIdempotencyKeyConflict)
		return
	}

	switch record.Status {
	case idem.StatusCompleted:
		g.replay(w, record)
	case idem.StatusInProgress:
		writeAppError(w, internal.ErrIdempotencyInProgress)
	case idem.StatusFailed:
		writeAppError(w, internal.NewConflictError(
			"A previous request with this idempotency key failed; retry with a new key",
			internal.ErrCodeIdempotencyKeyConflict))
	default:
		writeAppError(w, internal.ErrIdempotencyInProgress)
	}
}

func (g *Guard) replay(w http.ResponseWriter, record *idem.Record) {
	var snap idem.Snapshot
	if err := json.Unmarshal([]byte(record.ResponseBody), &snap); err != nil {
		g.logger.Error("failed to decode idempotency snapshot", "record_id", record.ID, "error", err)
		writeAppError(w, internal.NewInternalError("stored response could not be replayed", err))
		return
	}

	w.Header().Set("Idempotent-Replay", "true")
	if snap.RedirectTo != "" {
		w.Header().Set("Location", snap.RedirectTo)
	}
	if looksLikeJSON(snap.Data) {
		w.Header().Set("Content-Type", "application/json")
	} else if snap.Data != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(record.ResponseCode)
	if snap.Data != "" {
		w.Write([]byte(snap.Data))
	}
}

func (g *Guard) execute(scope string, record *idem.Record, next http.Handler, w http.ResponseWriter, r *http.Request) {
	recorder := newRecorder(w)

	defer func() {
		if rec := recover(); rec != nil {
			if err := g.store.MarkFailed(r.Context(), record.ID, http.StatusInternalServerError); err != nil {
				g.logger.Error("failed to mark idempotency record failed", "record_id", record.ID, "error", err)
			}
			panic(rec)
		}
	}()

	next.ServeHTTP(recorder, r)

	status := recorder.Status()
	if status >= http.StatusInternalServerError {
		// a failed key is terminal; the client retries with a new key
		if err := g.store.MarkFailed(r.Context(), record.ID, status); err != nil {
			g.logger.Error("failed to mark idempotency record failed", "record_id", record.ID, "error", err)
		}
		return
	}

	snap := idem.Snapshot{
		Data:       recorder.BodySnapshot(maxStoredBody),
		RedirectTo: recorder.Header().Get("Location"),
	}
	if snap.RedirectTo != "" {
		snap.Message = http.StatusText(status)
	}

	body, err := json.Marshal(snap)
	if err != nil {
		g.logger.Error("failed to encode idempotency snapshot", "record_id", record.ID, "error", err)
		return
	}
	if err := g.store.MarkCompleted(r.Context(), record.ID, status, string(body)); err != nil {
		g.logger.Error("failed to mark idempotency record completed", "record_id", record.ID, "error", err)
	}
}

// Sweep deletes records past their retention window. Expiry is garbage
// collection, not a correctness mechanism.
func (g *Guard) Sweep(ctx context.Context) (int64, error) {
	return g.store.DeleteExpired(ctx, time.Now())
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, payload := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// recorder captures status and body while writing through to the client.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w}
}

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.body.Len() < maxStoredBody {
		remaining := maxStoredBody - r.body.Len()
		if len(b) < remaining {
			remaining = len(b)
		}
		r.body.Write(b[:remaining])
	}
	return r.ResponseWriter.Write(b)
}

func (r *recorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *recorder) BodySnapshot(limit int) string {
	b := r.body.Bytes()
	if len(b) > limit {
		b = b[:limit]
	}
	return string(b)
}
