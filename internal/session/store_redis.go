package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

// RedisStore persists sessions as hashes plus a per-subject index set.
//
// Keys carry a retention TTL well past the sliding deadline so the Expired
// branch stays observable on access; once retention lapses Redis reclaims
// the key and further accesses report NotFound. Expiry semantics are still
// owned by the service; retention is garbage collection, not policy.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

// renewScript performs the atomic check-and-slide. Running it as a single
// script is what prevents a renewal from resurrecting a session that a
// concurrent expiry check is deleting.
var renewScript = redis.NewScript(`
local last = redis.call('HGET', KEYS[1], 'last_renewal')
if not last then
	return 'missing'
end
if tonumber(last) < tonumber(ARGV[2]) then
	return 'expired'
end
if tonumber(ARGV[1]) > tonumber(last) then
	redis.call('HSET', KEYS[1], 'last_renewal', ARGV[1])
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return redis.call('HGETALL', KEYS[1])
`)

// NewRedisStore wraps a redis client. Retention must exceed the longest
// sliding duration; 24h leaves plenty of observation room.
func NewRedisStore(client redis.UniversalClient, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisStore{client: client, retention: retention}
}

func sessionKey(id domain.SessionID) string {
	return "session:" + id.String()
}

func subjectKey(kind Kind, subjectID uuid.UUID) string {
	return "sessions:" + string(kind) + ":" + subjectID.String()
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	key := sessionKey(sess.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"subject_id", sess.SubjectID.String(),
		"kind", string(sess.Kind),
		"created_at", strconv.FormatInt(sess.CreatedAt.UnixNano(), 10),
		"last_renewal", strconv.FormatInt(sess.LastRenewal.UnixNano(), 10),
	)
	pipe.PExpire(ctx, key, s.retention)
	pipe.SAdd(ctx, subjectKey(sess.Kind, sess.SubjectID), sess.ID.String())
	pipe.PExpire(ctx, subjectKey(sess.Kind, sess.SubjectID), s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, id domain.SessionID) (*Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return parseSession(id, fields)
}

func (s *RedisStore) Renew(ctx context.Context, id domain.SessionID, now, cutoff time.Time) (*Session, error) {
	res, err := renewScript.Run(ctx, s.client,
		[]string{sessionKey(id)},
		strconv.FormatInt(now.UnixNano(), 10),
		strconv.FormatInt(cutoff.UnixNano(), 10),
		strconv.FormatInt(s.retention.Milliseconds(), 10),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("renew session: %w", err)
	}

	switch v := res.(type) {
	case string:
		switch v {
		case "missing":
			return nil, sentinel.ErrNotFound
		case "expired":
			return nil, sentinel.ErrExpired
		}
		return nil, fmt.Errorf("renew session: unexpected reply %q", v)
	case []interface{}:
		fields := make(map[string]string, len(v)/2)
		for i := 0; i+1 < len(v); i += 2 {
			k, _ := v[i].(string)
			val, _ := v[i+1].(string)
			fields[k] = val
		}
		return parseSession(id, fields)
	default:
		return nil, fmt.Errorf("renew session: unexpected reply type %T", res)
	}
}

func (s *RedisStore) Delete(ctx context.Context, id domain.SessionID) error {
	sess, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, subjectKey(sess.Kind, sess.SubjectID), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) CountLive(ctx context.Context, kind Kind, subjectID uuid.UUID, cutoff time.Time) (int, error) {
	members, err := s.client.SMembers(ctx, subjectKey(kind, subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list subject sessions: %w", err)
	}

	count := 0
	for _, member := range members {
		last, err := s.client.HGet(ctx, "session:"+member, "last_renewal").Result()
		if err == redis.Nil {
			// Reclaimed by retention; drop the stale index entry.
			s.client.SRem(ctx, subjectKey(kind, subjectID), member)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read session renewal: %w", err)
		}
		nanos, err := strconv.ParseInt(last, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse session renewal: %w", err)
		}
		if !time.Unix(0, nanos).UTC().Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *RedisStore) DeleteBySubject(ctx context.Context, kind Kind, subjectID uuid.UUID) error {
	members, err := s.client.SMembers(ctx, subjectKey(kind, subjectID)).Result()
	if err != nil {
		return fmt.Errorf("list subject sessions: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, member := range members {
		pipe.Del(ctx, "session:"+member)
	}
	pipe.Del(ctx, subjectKey(kind, subjectID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete subject sessions: %w", err)
	}
	return nil
}

func parseSession(id domain.SessionID, fields map[string]string) (*Session, error) {
	subject, err := uuid.Parse(fields["subject_id"])
	if err != nil {
		return nil, fmt.Errorf("parse session subject: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	renewed, err := strconv.ParseInt(fields["last_renewal"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session last_renewal: %w", err)
	}
	return &Session{
		ID:          id,
		SubjectID:   subject,
		Kind:        Kind(fields["kind"]),
		CreatedAt:   time.Unix(0, created).UTC(),
		LastRenewal: time.Unix(0, renewed).UTC(),
	}, nil
}
