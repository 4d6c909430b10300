package repo

import (
	"context"
	"fmt"

	"github.com/go-redis/redis"

	"github.com/Skryldev/hlc-import/models"
)

// RedisLoader writes records into Redis:
//
//	acc:<id>          hash of account columns, NULL columns omitted
//	interests:<id>    set of interests
//	likes:<from>      sorted set of liked ids scored by ts
//
// Commands are sent in pipelines of at most batchSize records.
type RedisLoader struct {
	client    *redis.Client
	batchSize int
}

// NewRedisLoader returns a loader that writes through client. batchSize <= 0
// selects DefaultBatchSize.
func NewRedisLoader(client *redis.Client, batchSize int) *RedisLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RedisLoader{client: client, batchSize: batchSize}
}

func (l *RedisLoader) LoadAccounts(ctx context.Context, accounts []models.Account) error {
	return pipelineAll(ctx, l, models.TableAccounts, accounts, func(p redis.Pipeliner, a models.Account) {
		p.HMSet(keyAccount(a.ID), packAccount(a))
	})
}

func (l *RedisLoader) LoadInterests(ctx context.Context, interests []models.Interest) error {
	return pipelineAll(ctx, l, models.TableInterests, interests, func(p redis.Pipeliner, in models.Interest) {
		p.SAdd(keyInterests(in.AccountID), in.Interest)
	})
}

func (l *RedisLoader) LoadLikes(ctx context.Context, likes []models.Like) error {
	return pipelineAll(ctx, l, models.TableLikes, likes, func(p redis.Pipeliner, lk models.Like) {
		p.ZAdd(keyLikes(lk.AccountIDFrom), redis.Z{Score: float64(lk.TS), Member: lk.AccountIDTo})
	})
}

func pipelineAll[T any](ctx context.Context, l *RedisLoader, table string, rows []T, add func(redis.Pipeliner, T)) error {
	client := l.client.WithContext(ctx)
	for start := 0; start < len(rows); start += l.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+l.batchSize, len(rows))
		pipe := client.Pipeline()
		for _, r := range rows[start:end] {
			add(pipe, r)
		}
		_, err := pipe.Exec()
		_ = pipe.Close()
		if err != nil {
			return fmt.Errorf("repo/%s: redis pipeline rows %d-%d: %w", table, start, end-1, err)
		}
	}
	return nil
}

func keyAccount(id int64) string   { return fmt.Sprintf("acc:%d", id) }
func keyInterests(id int64) string { return fmt.Sprintf("interests:%d", id) }
func keyLikes(id int64) string     { return fmt.Sprintf("likes:%d", id) }

func packAccount(a models.Account) map[string]interface{} {
	fields := make(map[string]interface{}, len(models.AccountColumns))

	fields["id"] = a.ID
	fields["fname"] = a.Fname
	fields["sname"] = a.Sname
	fields["sex"] = int8(a.Sex)
	fields["birth"] = a.Birth
	fields["joined"] = a.Joined
	fields["status"] = int8(a.Status)

	if a.Phone != nil {
		fields["phone"] = *a.Phone
	}
	if a.Country != nil {
		fields["country"] = *a.Country
	}
	if a.City != nil {
		fields["city"] = *a.City
	}
	if a.PremiumStart != nil {
		fields["premium_start"] = *a.PremiumStart
	}
	if a.PremiumEnd != nil {
		fields["premium_end"] = *a.PremiumEnd
	}
	return fields
}
