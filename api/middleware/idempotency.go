package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/responses"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	pkgredis "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/redis"
)

// IdempotencyHeader carries the client-chosen replay key.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader marks a response served from the idempotency store.
const ReplayedHeader = "Idempotent-Replayed"

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	pendingIdempotencyTTL  = 2 * time.Minute
	maxIdempotentBody      = 1 << 20
)

type idempotencyRule struct {
	method   string
	segments []string
	critical bool
}

// Segments equal to "*" match any single path segment. Critical routes move
// money or documents and keep their record for a week.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, segments: split("/api/v1/numbering/*/allocate")},
	{method: http.MethodPost, segments: split("/api/v1/products/*/stock-movements")},
	{method: http.MethodPost, segments: split("/api/v1/clients/*/points-movements")},
	{method: http.MethodPost, segments: split("/api/v1/documents/*/convert"), critical: true},
	{method: http.MethodPost, segments: split("/api/v1/documents/*/payments"), critical: true},
	{method: http.MethodPost, segments: split("/api/v1/pos/checkout"), critical: true},
}

var (
	errKeyInFlight = pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress")
	errKeyReused   = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
)

// storedResponse is what a key resolves to once its request has finished.
// A pending record only holds the request hash.
type storedResponse struct {
	RequestHash string `json:"request_hash"`
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the stored response of a ledger-writing request sent
// again with the same Idempotency-Key. The key is claimed before the handler
// runs so a concurrent duplicate is refused instead of executed twice. Server
// errors release the key so the caller can retry. A nil store disables the
// middleware.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, ttl time.Duration) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, logg: logg, ttl: ttl}
	if g.ttl <= 0 {
		g.ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchRule(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next, rule)
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
	ttl   time.Duration
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, rule idempotencyRule) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if clientKey == "" {
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := g.store.IdempotencyKey(requestScope(r), clientKey)
	hash := hashBody(body)
	replayed, err := g.begin(ctx, w, key, hash)
	if err != nil {
		g.fail(ctx, w, err)
		return
	}
	if replayed {
		return
	}

	rec := &statusRecorder{ResponseWriter: w, capture: &bytes.Buffer{}}
	next.ServeHTTP(rec, r)

	ttl := g.ttl
	if rule.critical {
		ttl = criticalIdempotencyTTL
	}
	g.finish(context.WithoutCancel(ctx), key, hash, rec, ttl)
}

// begin either replays a finished response into w, reporting true, or claims
// the key for this request. A pending claim, or one made with another body,
// is refused.
func (g *idempotencyGuard) begin(ctx context.Context, w http.ResponseWriter, key, hash string) (bool, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	default:
		var stored storedResponse
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
		}
		if err := replay(w, stored, hash); err != nil {
			return false, err
		}
		return true, nil
	}

	claim, err := json.Marshal(storedResponse{RequestHash: hash, Pending: true})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency claim")
	}
	claimed, err := g.store.SetNX(ctx, key, string(claim), pendingIdempotencyTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !claimed {
		return false, errKeyInFlight
	}
	return false, nil
}

func replay(w http.ResponseWriter, stored storedResponse, hash string) error {
	switch {
	case stored.RequestHash != hash:
		return errKeyReused
	case stored.Pending:
		return errKeyInFlight
	}
	w.Header().Set(ReplayedHeader, "true")
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
	return nil
}

// finish runs after the response is on the wire, so storage failures are only
// logged.
func (g *idempotencyGuard) finish(ctx context.Context, key, hash string, rec *statusRecorder, ttl time.Duration) {
	status := rec.Status()
	if status >= http.StatusInternalServerError {
		g.logErr(ctx, "release idempotency key", g.store.Del(ctx, key))
		return
	}
	payload, err := json.Marshal(storedResponse{
		RequestHash: hash,
		Status:      status,
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.capture.Bytes(),
	})
	if err != nil {
		g.logErr(ctx, "encode idempotency record", err)
		return
	}
	g.logErr(ctx, "persist idempotency record", g.store.Set(ctx, key, string(payload), ttl))
}

func (g *idempotencyGuard) fail(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, g.logg, w, err)
}

func (g *idempotencyGuard) logErr(ctx context.Context, msg string, err error) {
	if g.logg == nil || err == nil {
		return
	}
	g.logg.Error(ctx, msg, err)
}

// requestScope keeps keys from colliding across tenants and routes.
func requestScope(r *http.Request) string {
	return strings.Join([]string{TenantIDFromContext(r.Context()).String(), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func matchRule(method, path string) (idempotencyRule, bool) {
	segments := split(path)
	for _, rule := range idempotencyRules {
		if rule.method == method && segmentsMatch(rule.segments, segments) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

func segmentsMatch(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, want := range pattern {
		if want != "*" && want != path[i] {
			return false
		}
	}
	return true
}

func split(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
