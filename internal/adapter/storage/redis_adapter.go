package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/port"
)

const (
	benefitKeyPrefix  = "benefit:"
	benefitIndexKey   = "benefits"
	idempotencyKeyTTL = 24 * time.Hour
)

// casScript checks every record's version before writing any of them.
// ARGV holds five values per key: version, name, description, value, active,
// followed by a single updated_at timestamp.
// Returns 1 on commit, 0 on version mismatch, -1 when a record is missing.
var casScript = redis.NewScript(`
local n = #KEYS
for i = 1, n do
	local current = redis.call('HGET', KEYS[i], 'version')
	if not current then
		return -1
	end
	if tonumber(current) ~= tonumber(ARGV[(i - 1) * 5 + 1]) then
		return 0
	end
end

local updatedAt = ARGV[n * 5 + 1]
for i = 1, n do
	local base = (i - 1) * 5
	redis.call('HSET', KEYS[i],
		'name', ARGV[base + 2],
		'description', ARGV[base + 3],
		'value', ARGV[base + 4],
		'active', ARGV[base + 5],
		'updated_at', updatedAt)
	redis.call('HINCRBY', KEYS[i], 'version', 1)
end

return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

var (
	_ port.BenefitRepository     = (*RedisAdapter)(nil)
	_ port.IdempotencyRepository = (*RedisAdapter)(nil)
)

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func benefitKey(id string) string {
	return benefitKeyPrefix + id
}

func encodeActive(active bool) string {
	if active {
		return "1"
	}
	return "0"
}

func decodeBenefit(id string, fields map[string]string) (domain.Benefit, error) {
	b := domain.Benefit{
		ID:          id,
		Name:        fields["name"],
		Description: fields["description"],
		Active:      fields["active"] == "1",
	}

	var err error
	if b.Value, err = decimal.NewFromString(fields["value"]); err != nil {
		return b, fmt.Errorf("decode value: %w", err)
	}
	if b.Version, err = strconv.ParseInt(fields["version"], 10, 64); err != nil {
		return b, fmt.Errorf("decode version: %w", err)
	}
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return b, fmt.Errorf("decode created_at: %w", err)
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return b, fmt.Errorf("decode updated_at: %w", err)
	}
	return b, nil
}

func (r *RedisAdapter) Get(ctx context.Context, id string) (*domain.Benefit, error) {
	fields, err := r.client.HGetAll(ctx, benefitKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall benefit: %w", err)
	}
	if len(fields) == 0 {
		return nil, port.ErrNotFound
	}

	b, err := decodeBenefit(id, fields)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *RedisAdapter) List(ctx context.Context) ([]domain.Benefit, error) {
	ids, err := r.client.SMembers(ctx, benefitIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers benefits: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, benefitKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hgetall benefits: %w", err)
	}

	benefits := make([]domain.Benefit, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// deleted between SMEMBERS and HGETALL
			continue
		}
		b, err := decodeBenefit(ids[i], fields)
		if err != nil {
			return nil, err
		}
		benefits = append(benefits, b)
	}

	sortBenefits(benefits)
	return benefits, nil
}

func (r *RedisAdapter) Create(ctx context.Context, b domain.Benefit) (*domain.Benefit, error) {
	now := time.Now().UTC()
	b.ID = uuid.New().String()
	b.Version = 0
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, benefitKey(b.ID),
			"name", b.Name,
			"description", b.Description,
			"value", b.Value.String(),
			"active", encodeActive(b.Active),
			"version", b.Version,
			"created_at", b.CreatedAt.Format(time.RFC3339Nano),
			"updated_at", b.UpdatedAt.Format(time.RFC3339Nano),
		)
		pipe.SAdd(ctx, benefitIndexKey, b.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store benefit: %w", err)
	}

	return &b, nil
}

func (r *RedisAdapter) CompareAndSwap(ctx context.Context, benefits ...domain.Benefit) error {
	if len(benefits) == 0 {
		return nil
	}

	keys := make([]string, 0, len(benefits))
	args := make([]any, 0, len(benefits)*5+1)
	for _, b := range benefits {
		keys = append(keys, benefitKey(b.ID))
		args = append(args, b.Version, b.Name, b.Description, b.Value.String(), encodeActive(b.Active))
	}
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))

	result, err := casScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("run cas script: %w", err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return port.ErrNotFound
	default:
		return port.ErrVersionConflict
	}
}

func (r *RedisAdapter) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, benefitKey(id))
		pipe.SRem(ctx, benefitIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete benefit: %w", err)
	}
	if del.Val() == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	err := r.client.Del(ctx, key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
