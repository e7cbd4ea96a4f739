package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/kinship/internal/logging"
	"github.com/HammerMeetNail/kinship/internal/models"
	"github.com/HammerMeetNail/kinship/internal/validation"
)

type CacheKind string

const (
	CacheKindUserProfile   CacheKind = "user"
	CacheKindRelationships CacheKind = "relationships"
	CacheKindSession       CacheKind = "session"
)

// cacheSchemaVersion is bumped whenever a cached payload changes shape, so
// entries written by an older build read as misses.
const cacheSchemaVersion = 1

const sessionIndexPrefix = "session_index:"

type CacheTTLs struct {
	UserProfile   time.Duration
	Relationships time.Duration
	Session       time.Duration
}

var DefaultCacheTTLs = CacheTTLs{
	UserProfile:   5 * time.Minute,
	Relationships: 2 * time.Minute,
	Session:       time.Hour,
}

type CacheKey struct {
	Kind CacheKind
	ID   string
}

func (k CacheKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

func UserProfileKey(userID uuid.UUID) CacheKey {
	return CacheKey{Kind: CacheKindUserProfile, ID: userID.String()}
}

func RelationshipsKey(userID uuid.UUID) CacheKey {
	return CacheKey{Kind: CacheKindRelationships, ID: userID.String()}
}

func SessionKey(token string) CacheKey {
	return CacheKey{Kind: CacheKindSession, ID: token}
}

func sessionIndexKey(userID uuid.UUID) string {
	return sessionIndexPrefix + userID.String()
}

type cacheEnvelope struct {
	Version int             `json:"v"`
	Kind    CacheKind       `json:"k"`
	Data    json.RawMessage `json:"d"`
}

// Cache is a best-effort read-through cache in front of postgres. No method
// returns an error: redis failures are logged and read as misses.
type Cache struct {
	redis   RedisClient
	ttls    CacheTTLs
	metrics *CacheMetrics
	now     func() time.Time
}

func NewCache(redis RedisClient, ttls CacheTTLs, metrics *CacheMetrics) *Cache {
	if ttls.UserProfile <= 0 {
		ttls.UserProfile = DefaultCacheTTLs.UserProfile
	}
	if ttls.Relationships <= 0 {
		ttls.Relationships = DefaultCacheTTLs.Relationships
	}
	if ttls.Session <= 0 {
		ttls.Session = DefaultCacheTTLs.Session
	}
	return &Cache{redis: redis, ttls: ttls, metrics: metrics, now: time.Now}
}

func (c *Cache) GetUserProfile(ctx context.Context, userID uuid.UUID) (*models.PublicUser, bool) {
	var user models.PublicUser
	ok := c.get(ctx, UserProfileKey(userID), &user, func() bool {
		return validation.Valid(&user) && user.ID == userID
	})
	if !ok {
		return nil, false
	}
	return &user, true
}

func (c *Cache) SetUserProfile(ctx context.Context, user *models.PublicUser) {
	if c == nil || user == nil {
		return
	}
	c.set(ctx, UserProfileKey(user.ID), user, c.ttls.UserProfile)
}

func (c *Cache) InvalidateUserProfile(ctx context.Context, userID uuid.UUID) {
	c.InvalidateMany(ctx, UserProfileKey(userID))
}

func (c *Cache) GetRelationships(ctx context.Context, userID uuid.UUID) ([]models.Relationship, bool) {
	var list []models.Relationship
	ok := c.get(ctx, RelationshipsKey(userID), &list, func() bool {
		if list == nil {
			return false
		}
		for i := range list {
			if !validation.Valid(&list[i]) || !list[i].Involves(userID) {
				return false
			}
		}
		return true
	})
	if !ok {
		return nil, false
	}
	return list, true
}

func (c *Cache) SetRelationships(ctx context.Context, userID uuid.UUID, list []models.Relationship) {
	if c == nil {
		return
	}
	if list == nil {
		list = []models.Relationship{}
	}
	c.set(ctx, RelationshipsKey(userID), list, c.ttls.Relationships)
}

// InvalidateRelationships drops the cached relationship lists of every given user in one round trip.
func (c *Cache) InvalidateRelationships(ctx context.Context, userIDs ...uuid.UUID) {
	keys := make([]CacheKey, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, RelationshipsKey(id))
	}
	c.InvalidateMany(ctx, keys...)
}

// GetSession returns a cached session. Entries past their expiry are discarded.
func (c *Cache) GetSession(ctx context.Context, token string) (*models.SessionIdentity, bool) {
	var identity models.SessionIdentity
	key := SessionKey(token)
	ok := c.get(ctx, key, &identity, func() bool {
		return validation.Valid(&identity)
	})
	if !ok {
		return nil, false
	}
	if identity.Expired(c.now()) {
		c.InvalidateSession(ctx, token, identity.UserID)
		return nil, false
	}
	return &identity, true
}

// SetSession caches a session for at most the session TTL and never past its
// expiry, and records the token in the owner's session index.
func (c *Cache) SetSession(ctx context.Context, token string, identity *models.SessionIdentity) {
	if c == nil || c.redis == nil || identity == nil {
		return
	}
	ttl := c.ttls.Session
	if remaining := identity.ExpiresAt.Sub(c.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	if err := c.redis.IndexAdd(ctx, sessionIndexKey(identity.UserID), token, c.ttls.Session); err != nil {
		logging.Warn("Cache session index add failed", map[string]interface{}{
			"error":   err.Error(),
			"user_id": identity.UserID.String(),
		})
		// Without an index entry the session could not be revoked by user, so do not cache it.
		return
	}
	c.set(ctx, SessionKey(token), identity, ttl)
}

func (c *Cache) InvalidateSession(ctx context.Context, token string, userID uuid.UUID) {
	c.InvalidateMany(ctx, SessionKey(token))
	if c == nil || c.redis == nil || userID == uuid.Nil {
		return
	}
	if err := c.redis.IndexRemove(ctx, sessionIndexKey(userID), token); err != nil {
		logging.Warn("Cache session index remove failed", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID.String(),
		})
	}
}

// InvalidateUserSessions drops every cached session of userID using the
// per-user index, so the cost is proportional to that user's sessions.
func (c *Cache) InvalidateUserSessions(ctx context.Context, userID uuid.UUID) {
	if c == nil || c.redis == nil {
		return
	}
	indexKey := sessionIndexKey(userID)
	tokens, err := c.redis.IndexMembers(ctx, indexKey)
	if err != nil {
		logging.Warn("Cache session index read failed", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID.String(),
		})
		return
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, SessionKey(token).String())
	}
	keys = append(keys, indexKey)

	if err := c.redis.Del(ctx, keys...); err != nil {
		logging.Warn("Cache session invalidation failed", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID.String(),
			"count":   len(tokens),
		})
		return
	}
	c.metrics.invalidated(CacheKindSession, len(tokens))
}

// InvalidateMany deletes keys in a single call. Failures are logged only.
func (c *Cache) InvalidateMany(ctx context.Context, keys ...CacheKey) {
	if c == nil || c.redis == nil || len(keys) == 0 {
		return
	}
	raw := make([]string, 0, len(keys))
	for _, k := range keys {
		raw = append(raw, k.String())
	}
	if err := c.redis.Del(ctx, raw...); err != nil {
		logging.Warn("Cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
			"keys":  raw,
		})
		return
	}
	for _, k := range keys {
		c.metrics.invalidated(k.Kind, 1)
	}
}

func (c *Cache) get(ctx context.Context, key CacheKey, dest any, valid func() bool) bool {
	if c == nil || c.redis == nil {
		return false
	}

	raw, err := c.redis.Get(ctx, key.String())
	if errors.Is(err, redis.Nil) {
		c.metrics.observe(key.Kind, "miss")
		return false
	}
	if err != nil {
		c.metrics.observe(key.Kind, "error")
		logging.Warn("Cache get failed", map[string]interface{}{
			"error": err.Error(),
			"kind":  string(key.Kind),
		})
		return false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version != cacheSchemaVersion || env.Kind != key.Kind {
		c.discard(ctx, key)
		return false
	}
	if err := json.Unmarshal(env.Data, dest); err != nil || !valid() {
		c.discard(ctx, key)
		return false
	}

	c.metrics.observe(key.Kind, "hit")
	return true
}

func (c *Cache) set(ctx context.Context, key CacheKey, value any, ttl time.Duration) {
	if c == nil || c.redis == nil || ttl <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		logging.Error("Cache encode failed", map[string]interface{}{
			"error": err.Error(),
			"kind":  string(key.Kind),
		})
		return
	}
	payload, err := json.Marshal(cacheEnvelope{Version: cacheSchemaVersion, Kind: key.Kind, Data: data})
	if err != nil {
		logging.Error("Cache encode failed", map[string]interface{}{
			"error": err.Error(),
			"kind":  string(key.Kind),
		})
		return
	}
	if err := c.redis.Set(ctx, key.String(), payload, ttl); err != nil {
		logging.Warn("Cache set failed", map[string]interface{}{
			"error": err.Error(),
			"kind":  string(key.Kind),
		})
	}
}

// discard treats an undecodable entry as a miss and removes it.
func (c *Cache) discard(ctx context.Context, key CacheKey) {
	c.metrics.observe(key.Kind, "corrupt")
	logging.Warn("Discarding corrupt cache entry", map[string]interface{}{
		"kind": string(key.Kind),
	})
	if err := c.redis.Del(ctx, key.String()); err != nil {
		logging.Warn("Cache delete failed", map[string]interface{}{
			"error": err.Error(),
			"kind":  string(key.Kind),
		})
	}
}

// CacheMetrics counts cache outcomes. A nil *CacheMetrics is a no-op.
type CacheMetrics struct {
	requests      *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kinship",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache reads by entity kind and result (hit, miss, error, corrupt).",
		}, []string{"kind", "result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kinship",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache entries invalidated by entity kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.invalidations)
	}
	return m
}

func (m *CacheMetrics) observe(kind CacheKind, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(kind), result).Inc()
}

func (m *CacheMetrics) invalidated(kind CacheKind, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidations.WithLabelValues(string(kind)).Add(float64(n))
}
