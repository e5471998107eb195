package main

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/service"
)

var benchOpts struct {
	users int
	conc  int
	page  int
}

// benchCmd 模拟大 V 场景：N 个用户同时关注同一人，测量关注延迟、
// 修复队列峰值、粉丝分页与收件箱延迟，最后做一次对账确认无漂移。
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load-test follow symmetry against the configured database",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchOpts.users, "users", 10000, "number of followers to seed")
	benchCmd.Flags().IntVar(&benchOpts.conc, "conc", 8, "concurrent follow workers")
	benchCmd.Flags().IntVar(&benchOpts.page, "page", 50, "followers page size")
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	n, conc := benchOpts.users, benchOpts.conc
	if n <= 0 || conc <= 0 {
		return fmt.Errorf("users and conc must be positive")
	}
	if conc > n {
		conc = n
	}

	stopReplicator := a.replicator.Start(cfg.Consistency.ReplicatorWorkers)
	toggles := a.toggles(cfg, a.replicator)
	agg := service.NewAggregationEngine(a.rel, a.eng, a.ideas, a.messages, a.profiles, a.metrics)
	relSvc := service.NewRelationshipService(a.rel, a.users, a.profiles, a.profiles)

	celeb := &model.User{ID: "bench-celeb", Name: "celeb", Email: "bench-celeb@example.com"}
	if err := a.users.Upsert(ctx, celeb); err != nil {
		return err
	}
	ids := make([]string, n)
	batch := make([]model.User, 0, 1000)
	for i := range ids {
		id := uuid.NewString()
		ids[i] = id
		batch = append(batch, model.User{ID: id, Name: "u" + id[:8], Email: id[:8] + "@bench.example.com"})
		if len(batch) == cap(batch) || i == n-1 {
			if err := a.db.WithContext(ctx).Create(&batch).Error; err != nil {
				return fmt.Errorf("seed users: %w", err)
			}
			batch = batch[:0]
		}
	}

	maxQ := 0
	sampleCtx, stopSample := context.WithCancel(ctx)
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if q := a.replicator.QueueLen(); q > maxQ {
					maxQ = q
				}
			case <-sampleCtx.Done():
				return
			}
		}
	}()

	var (
		mu       sync.Mutex
		lats     = make([]time.Duration, 0, n)
		failures int
	)
	feed := make(chan string, n)
	for _, id := range ids {
		feed <- id
	}
	close(feed)

	t0 := time.Now()
	var g errgroup.Group
	for w := 0; w < conc; w++ {
		g.Go(func() error {
			for id := range feed {
				st := time.Now()
				err := toggles.Follow(ctx, id, celeb.ID)
				d := time.Since(st)
				mu.Lock()
				lats = append(lats, d)
				if err != nil {
					failures++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	total := time.Since(t0)
	stopSample()
	<-sampled

	q0 := time.Now()
	if _, err := relSvc.ListFollowers(ctx, celeb.ID, 1, benchOpts.page); err != nil {
		return err
	}
	fansDur := time.Since(q0)

	q1 := time.Now()
	inbox, err := agg.Inbox(ctx, ids[0])
	if err != nil {
		return err
	}
	inboxDur := time.Since(q1)

	drainStart := time.Now()
	if err := stopReplicator(context.Background()); err != nil {
		return err
	}
	drainDur := time.Since(drainStart)

	rep, err := a.reconciler.RunOnce(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "users=%d conc=%d page=%d\n", n, conc, benchOpts.page)
	fmt.Fprintf(out, "follow total: %v, per op: %v, p50: %v, p95: %v, p99: %v, failures: %d\n",
		total, total/time.Duration(n), pct(lats, 0.50), pct(lats, 0.95), pct(lats, 0.99), failures)
	fmt.Fprintf(out, "repair queue max: %d, drain: %v\n", maxQ, drainDur)
	fmt.Fprintf(out, "followers(%d) latency: %v\n", benchOpts.page, fansDur)
	fmt.Fprintf(out, "inbox latency: %v (%d entries)\n", inboxDur, len(inbox))
	fmt.Fprintf(out, "reconcile: %+v\n", rep)
	return nil
}
