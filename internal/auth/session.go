package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("refresh session not found")

// Session is what a refresh token resolves to.
type Session struct {
	UserID    uint      `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore keeps refresh sessions keyed by the hash of the opaque token.
type SessionStore interface {
	Save(ctx context.Context, hash string, s Session) error
	// Consume returns the session and revokes it in one step, so a token is usable once.
	// Unknown, revoked and expired tokens return ErrSessionNotFound.
	Consume(ctx context.Context, hash string) (*Session, error)
	Revoke(ctx context.Context, hash string) error
}

// GormSessionStore persists sessions in the refresh_tokens table.
type GormSessionStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *GormSessionStore) Save(ctx context.Context, hash string, sess Session) error {
	return s.DB.WithContext(ctx).Create(&RefreshToken{
		UserID:    sess.UserID,
		Hash:      hash,
		ExpiresAt: sess.ExpiresAt.UTC(),
	}).Error
}

func (s *GormSessionStore) Consume(ctx context.Context, hash string) (*Session, error) {
	now := s.Now()
	db := s.DB.WithContext(ctx)
	res := db.Model(&RefreshToken{}).
		Where("hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, now).
		Update("revoked_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrSessionNotFound
	}
	var rt RefreshToken
	if err := db.Where("hash = ?", hash).First(&rt).Error; err != nil {
		return nil, err
	}
	return &Session{UserID: rt.UserID, ExpiresAt: rt.ExpiresAt}, nil
}

func (s *GormSessionStore) Revoke(ctx context.Context, hash string) error {
	return s.DB.WithContext(ctx).Model(&RefreshToken{}).
		Where("hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", s.Now()).Error
}

// RedisSessionStore keeps one key per session, expiring with the token.
type RedisSessionStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Client: client, Prefix: "refresh:"}
}

func (s *RedisSessionStore) key(hash string) string { return s.Prefix + hash }

func (s *RedisSessionStore) Save(ctx context.Context, hash string, sess Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, s.key(hash), b, ttl).Err()
}

func (s *RedisSessionStore) Consume(ctx context.Context, hash string) (*Session, error) {
	b, err := s.Client.GetDel(ctx, s.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, err
	}
	if !sess.ExpiresAt.After(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, hash string) error {
	return s.Client.Del(ctx, s.key(hash)).Err()
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
