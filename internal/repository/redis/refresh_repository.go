package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/repository"
)

const (
	recordKeyPrefix  = "refresh:token:"
	subjectKeyPrefix = "refresh:subject:"
)

// revokeScript flips revoked from 0 to 1 and reports whether it did. Missing keys
// return 0 and are not recreated.
var revokeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'revoked') == '0' then
	redis.call('HSET', KEYS[1], 'revoked', '1')
	return 1
end
return 0
`)

// RefreshTokenRepository stores refresh token records as hashes. Keys expire with
// the record so Redis never accumulates dead tokens.
type RefreshTokenRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewRefreshTokenRepository(client *redis.Client) repository.RefreshTokenRepository {
	return &RefreshTokenRepository{client: client, now: time.Now}
}

func recordKey(id string) string         { return recordKeyPrefix + id }
func subjectKey(subjectID string) string { return subjectKeyPrefix + subjectID }

func (r *RefreshTokenRepository) Init(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Create(ctx context.Context, rec *domain.RefreshRecord) error {
	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey(rec.ID),
			"subject_id", rec.SubjectID,
			"secret_hash", rec.SecretHash,
			"issued_at", rec.IssuedAt.UTC().Format(time.RFC3339Nano),
			"expires_at", rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
			"revoked", boolField(rec.Revoked),
		)
		pipe.Expire(ctx, recordKey(rec.ID), ttl)
		pipe.SAdd(ctx, subjectKey(rec.SubjectID), rec.ID)
		pipe.Expire(ctx, subjectKey(rec.SubjectID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Get(ctx context.Context, id string) (*domain.RefreshRecord, error) {
	fields, err := r.client.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrRefreshNotFound
	}

	rec := domain.RefreshRecord{
		ID:         id,
		SubjectID:  fields["subject_id"],
		SecretHash: fields["secret_hash"],
		Revoked:    fields["revoked"] == "1",
	}
	if rec.IssuedAt, err = time.Parse(time.RFC3339Nano, fields["issued_at"]); err != nil {
		return nil, fmt.Errorf("parse refresh token issued_at: %w", err)
	}
	if rec.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("parse refresh token expires_at: %w", err)
	}
	return &rec, nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id string) (bool, error) {
	n, err := revokeScript.Run(ctx, r.client, []string{recordKey(id)}).Int()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return n == 1, nil
}

func (r *RefreshTokenRepository) RevokeBySubject(ctx context.Context, subjectID string) error {
	ids, err := r.client.SMembers(ctx, subjectKey(subjectID)).Result()
	if err != nil {
		return fmt.Errorf("list refresh tokens for subject: %w", err)
	}
	for _, id := range ids {
		if _, err := r.Revoke(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
