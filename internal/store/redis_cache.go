package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/slop-farmer/internal/slop"
	"go.uber.org/zap"
)

// unknownDomain is cached for names that are not stored, so repeated checks of
// clean domains do not reach the database.
const unknownDomain = "-"

// fillScript sets each domain key only while its generation still matches the
// one read before the store was queried. A merge bumps the generation, so a
// fill that raced with it is dropped.
//
// KEYS: generation key, domain key, ... ARGV: ttl ms, then expected generation, value, ...
var fillScript = redis.NewScript(`
for i = 1, #KEYS, 2 do
	local current = redis.call('GET', KEYS[i]) or '0'
	if current == ARGV[i + 1] then
		redis.call('SET', KEYS[i + 1], ARGV[i + 2], 'PX', ARGV[1])
	end
end
return 0
`)

// RedisCacheRepository wraps a slop.Repository with Redis caching for reads.
// Merges bump a per-domain generation and drop the cached entries of every
// domain they touch; top offender lists only expire.
type RedisCacheRepository struct {
	store     slop.Repository
	client    *redis.Client
	logger    *zap.Logger
	domainKey string
	genKey    string
	topKey    string
	ttl       time.Duration
	topTTL    time.Duration
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
func NewRedisCacheRepository(
	store slop.Repository, client *redis.Client, ttl, topTTL time.Duration, logger *zap.Logger,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:     store,
		client:    client,
		logger:    logger,
		domainKey: "slop:domain:",
		genKey:    "slop:gen:",
		topKey:    "slop:top:",
		ttl:       ttl,
		topTTL:    topTTL,
	}
}

// Merge writes through to the underlying store, then invalidates the batch's domains.
func (r *RedisCacheRepository) Merge(
	ctx context.Context, batch slop.Batch, reporter *uuid.UUID, at time.Time,
) (slop.MergeResult, error) {
	result, err := r.store.Merge(ctx, batch, reporter, at)
	if err != nil {
		return result, err
	}

	names := batch.Domains()
	if len(names) == 0 {
		return result, nil
	}

	pipe := r.client.TxPipeline()

	for _, name := range names {
		pipe.Incr(ctx, r.genKey+name)
		pipe.Del(ctx, r.domainKey+name)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("failed to invalidate domain cache", zap.Strings("domains", names), zap.Error(err))
	}

	return result, nil
}

// SelectKnown answers from cache where possible and loads the misses from the store.
func (r *RedisCacheRepository) SelectKnown(ctx context.Context, names []string) ([]slop.Domain, error) {
	if len(names) == 0 {
		return []slop.Domain{}, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = r.domainKey + name
	}

	cached, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		// Cache unavailable - fall back to the store
		return r.store.SelectKnown(ctx, names)
	}

	found := make([]slop.Domain, 0, len(names))
	misses := make([]string, 0, len(names))

	for i, v := range cached {
		raw, ok := v.(string)
		if !ok {
			misses = append(misses, names[i])

			continue
		}

		if raw == unknownDomain {
			continue
		}

		var domain slop.Domain
		if err := json.Unmarshal([]byte(raw), &domain); err != nil {
			misses = append(misses, names[i])

			continue
		}

		found = append(found, domain)
	}

	if len(misses) > 0 {
		// Generations are read before the store so a merge landing in between is detected
		generations, genErr := r.generations(ctx, misses)

		loaded, err := r.store.SelectKnown(ctx, misses)
		if err != nil {
			return nil, err
		}

		if genErr == nil {
			r.cacheDomains(ctx, misses, generations, loaded)
		}

		found = append(found, loaded...)
	}

	sortDomains(found)

	return found, nil
}

func (r *RedisCacheRepository) generations(ctx context.Context, names []string) ([]string, error) {
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = r.genKey + name
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	generations := make([]string, len(values))

	for i, v := range values {
		generations[i] = "0"
		if s, ok := v.(string); ok {
			generations[i] = s
		}
	}

	return generations, nil
}

// TopOffenders serves a cached ranking until it expires.
func (r *RedisCacheRepository) TopOffenders(ctx context.Context, limit int) ([]slop.Offender, error) {
	key := r.topKey + strconv.Itoa(max(limit, 0))

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var offenders []slop.Offender
		if json.Unmarshal(raw, &offenders) == nil {
			return offenders, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Debug("top offenders cache read failed", zap.Error(err))
	}

	offenders, err := r.store.TopOffenders(ctx, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(offenders); err == nil {
		_ = r.client.Set(ctx, key, payload, r.topTTL).Err()
	}

	return offenders, nil
}

func (r *RedisCacheRepository) cacheDomains(
	ctx context.Context, requested, generations []string, loaded []slop.Domain,
) {
	byName := make(map[string]slop.Domain, len(loaded))
	for _, d := range loaded {
		byName[d.Name] = d
	}

	keys := make([]string, 0, 2*len(requested))
	args := make([]any, 0, 1+2*len(requested))
	args = append(args, r.ttl.Milliseconds())

	for i, name := range requested {
		value := unknownDomain

		if d, ok := byName[name]; ok {
			payload, err := json.Marshal(d)
			if err != nil {
				continue
			}

			value = string(payload)
		}

		keys = append(keys, r.genKey+name, r.domainKey+name)
		args = append(args, generations[i], value)
	}

	if len(keys) == 0 {
		return
	}

	if err := fillScript.Run(ctx, r.client, keys, args...).Err(); err != nil {
		r.logger.Debug("domain cache fill failed", zap.Error(err))
	}
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

// Compile-time check.
var _ slop.Repository = (*RedisCacheRepository)(nil)

func sortDomains(domains []slop.Domain) {
	slices.SortFunc(domains, func(a, b slop.Domain) int { return cmp.Compare(a.ID, b.ID) })
}
