package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// RedisLocker provides per-key mutual exclusion shared across replicas,
// backed by SET NX with a TTL so a crashed holder cannot wedge the key.
type RedisLocker struct{}

func NewRedisLocker() *RedisLocker {
	return &RedisLocker{}
}

func (RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return RedisClient.SetNX(ctx, "lock:"+key, "1", ttl).Result()
}

func (RedisLocker) Release(ctx context.Context, key string) error {
	return RedisClient.Del(ctx, "lock:"+key).Err()
}

// OTP storage. Kept in Redis with a TTL rather than in-process so that
// verification works no matter which replica handles the follow-up request.

const otpTTL = 15 * time.Minute

func otpKey(email, purpose string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, email)
}

// SetOTP stores a one-time code for the given email and purpose.
func SetOTP(ctx context.Context, email, purpose, code string) error {
	return RedisClient.Set(ctx, otpKey(email, purpose), code, otpTTL).Err()
}

// CheckOTP reports whether the supplied code matches the stored one. A match
// consumes the code.
func CheckOTP(ctx context.Context, email, purpose, code string) (bool, error) {
	stored, err := RedisClient.Get(ctx, otpKey(email, purpose)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if stored != code {
		return false, nil
	}
	return true, RedisClient.Del(ctx, otpKey(email, purpose)).Err()
}

// PublishBookingUpdate publishes a booking status change to Redis pub/sub so
// every replica's websocket hub can push it to connected clients.
func PublishBookingUpdate(ctx context.Context, bookingID, clientID, vehicleID uint, status string) error {
	updateData := map[string]interface{}{
		"bookingId": bookingID,
		"clientId":  clientID,
		"vehicleId": vehicleID,
		"status":    status,
		"timestamp": time.Now().Unix(),
	}

	data, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "booking:updates", data).Err()
}

// SubscribeBookingUpdates returns the pub/sub subscription carrying booking
// status changes.
func SubscribeBookingUpdates(ctx context.Context) *redis.PubSub {
	return RedisClient.Subscribe(ctx, "booking:updates")
}
