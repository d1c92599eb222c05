package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storyweaver-server/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ TokenRepository = (*redisTokenRepository)(nil)

type redisTokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRepository creates a Redis-backed TokenRepository. Each token
// pair is stored as two keys whose TTLs match the token lifetimes, so expired
// entries vanish without cleanup jobs.
func NewRedisTokenRepository(client *redis.Client, logger *zap.Logger) TokenRepository {
	return &redisTokenRepository{
		client: client,
		logger: logger.Named("RedisTokenRepo"),
	}
}

func accessKey(accessUUID string) string   { return fmt.Sprintf("access_uuid:%s", accessUUID) }
func refreshKey(refreshUUID string) string { return fmt.Sprintf("refresh_uuid:%s", refreshUUID) }

// SetToken implements TokenRepository.
func (r *redisTokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	now := time.Now()
	accessTTL := time.Unix(td.AtExpires, 0).Sub(now)
	refreshTTL := time.Unix(td.RtExpires, 0).Sub(now)
	userIDStr := userID.String()

	pipe := r.client.Pipeline()
	pipe.Set(ctx, accessKey(td.AccessUUID), userIDStr, accessTTL)
	pipe.Set(ctx, refreshKey(td.RefreshUUID), userIDStr, refreshTTL)

	r.logger.Debug("Storing token pair",
		zap.String("userID", userIDStr),
		zap.Duration("accessTTL", accessTTL),
		zap.Duration("refreshTTL", refreshTTL),
	)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to store token pair", zap.Error(err), zap.String("userID", userIDStr))
		return fmt.Errorf("failed to store token pair in redis: %w", err)
	}
	return nil
}

// GetUserIDByRefresh implements TokenRepository.
func (r *redisTokenRepository) GetUserIDByRefresh(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	val, err := r.client.Get(ctx, refreshKey(refreshUUID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, models.ErrTokenNotFound
		}
		r.logger.Error("Failed to look up refresh token", zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		r.logger.Error("Stored refresh token maps to invalid user id", zap.Error(err), zap.String("value", val))
		return uuid.Nil, models.ErrTokenInvalid
	}
	return userID, nil
}

// DeleteTokens implements TokenRepository.
func (r *redisTokenRepository) DeleteTokens(ctx context.Context, accessUUID, refreshUUID string) (int64, error) {
	keys := make([]string, 0, 2)
	if accessUUID != "" {
		keys = append(keys, accessKey(accessUUID))
	}
	if refreshUUID != "" {
		keys = append(keys, refreshKey(refreshUUID))
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		r.logger.Error("Failed to delete tokens", zap.Error(err))
		return 0, fmt.Errorf("failed to delete tokens from redis: %w", err)
	}
	return deleted, nil
}
