package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/benefit-transfer/internal/adapter/storage"
	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/core/service"
)

const queueSize = 1024

// clearBenefits removes the benefit hashes and their index, leaving any
// other keys in the database alone.
func clearBenefits(ctx context.Context, rdb *redis.Client) error {
	keys := []string{"benefits"}
	iter := rdb.Scan(ctx, 0, "benefit:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return rdb.Del(ctx, keys...).Err()
}

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "redis address")
	records := flag.Int("records", 5, "number of benefits")
	totalRequests := flag.Int("transfers", 500, "number of concurrent transfers")
	initialValue := flag.String("initial", "100.00", "starting value per benefit")
	maxAttempts := flag.Int("attempts", service.DefaultMaxAttempts, "attempts per transfer")
	flag.Parse()

	if *records < 2 {
		log.Fatalf("need at least 2 benefits, got %d", *records)
	}

	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, PoolSize: 100})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Clear previous test data
	if err := clearBenefits(ctx, rdb); err != nil {
		log.Fatalf("failed to clear previous benefits: %v", err)
	}

	redisAdapter := storage.NewRedisAdapter(rdb)
	policy := service.RetryPolicy{MaxAttempts: *maxAttempts}
	benefitService := service.NewBenefitService(redisAdapter, policy, zap.NewNop())
	transferService := service.NewTransferService(redisAdapter, redisAdapter, policy, queueSize, zap.NewNop())
	defer transferService.Close()

	// Drain the event queue in background
	go func() {
		for range transferService.GetEventQueue() {
		}
	}()

	start := decimal.RequireFromString(*initialValue)
	ids := make([]string, *records)
	for i := range ids {
		b, err := benefitService.Create(ctx, domain.BenefitInput{Name: fmt.Sprintf("stress-%d", i), Value: &start})
		if err != nil {
			log.Fatalf("failed to seed benefit: %v", err)
		}
		ids[i] = b.ID
	}
	expectedTotal := start.Mul(decimal.NewFromInt(int64(*records)))

	var committed, insufficient, conflicts, failed atomic.Int32

	var wg sync.WaitGroup
	begin := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			from := rand.IntN(len(ids))
			to := (from + 1 + rand.IntN(len(ids)-1)) % len(ids)
			amount := decimal.New(int64(1+rand.IntN(5000)), -2)

			err := transferService.Transfer(ctx, domain.TransferRequest{FromID: ids[from], ToID: ids[to], Amount: amount})
			switch {
			case err == nil:
				committed.Add(1)
			case errors.Is(err, service.ErrInsufficientBalance):
				insufficient.Add(1)
			case errors.Is(err, service.ErrConcurrentUpdateConflict):
				conflicts.Add(1)
			default:
				failed.Add(1)
				log.Printf("transfer failed: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(begin)

	benefits, err := benefitService.List(ctx)
	if err != nil {
		log.Fatalf("failed to list benefits: %v", err)
	}

	total := decimal.Zero
	negative := 0
	var versions int64
	for _, b := range benefits {
		total = total.Add(b.Value)
		versions += b.Version
		if b.Value.IsNegative() {
			negative++
		}
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Benefits:         %d x %s\n", *records, start)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Committed:        %d\n", committed.Load())
	fmt.Printf("Insufficient:     %d\n", insufficient.Load())
	fmt.Printf("Gave up:          %d\n", conflicts.Load())
	fmt.Printf("Other failures:   %d\n", failed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if total.Equal(expectedTotal) {
		fmt.Printf("PASS: total conserved at %s\n", total)
	} else {
		fmt.Printf("FAIL: expected total %s, got %s\n", expectedTotal, total)
	}

	if negative == 0 {
		fmt.Println("PASS: no negative balances")
	} else {
		fmt.Printf("FAIL: %d negative balances\n", negative)
	}

	// each commit bumps exactly two versions
	if versions == 2*int64(committed.Load()) {
		fmt.Printf("PASS: versions advanced %d times for %d commits\n", versions, committed.Load())
	} else {
		fmt.Printf("FAIL: expected %d version bumps, got %d\n", 2*committed.Load(), versions)
	}
}
