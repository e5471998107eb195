package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/ideagraph/internal/metrics"
	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/logger"
)

// ReconcileReport 一轮对账的结果
type ReconcileReport struct {
	RepairsApplied int   `json:"repairs_applied"`
	RepairsFailed  int   `json:"repairs_failed"`
	FansAdded      int   `json:"fans_added"`
	FansRemoved    int   `json:"fans_removed"`
	WishesAdded    int   `json:"wishes_added"`
	WishesRemoved  int   `json:"wishes_removed"`
	LikesRecounted int64 `json:"likes_recounted"`
}

// Reconciler 兜底修复：认领 outbox 中的修复记录逐条重放，并定期全量扫描
// follows/fans、collaborators/wishes 与 likes 计数，把冗余侧拉回权威侧。
type Reconciler struct {
	rel     *RelationshipStore
	eng     *EngagementStore
	outbox  repository.OutboxRepository
	metrics *metrics.Metrics

	claimLimit   int
	batchSize    int
	lease        time.Duration
	pollInterval time.Duration
}

func NewReconciler(rel *RelationshipStore, eng *EngagementStore, outbox repository.OutboxRepository, m *metrics.Metrics, claimLimit int) *Reconciler {
	if claimLimit <= 0 {
		claimLimit = 128
	}
	return &Reconciler{
		rel:          rel,
		eng:          eng,
		outbox:       outbox,
		metrics:      m,
		claimLimit:   claimLimit,
		batchSize:    500,
		lease:        time.Minute,
		pollInterval: 500 * time.Millisecond,
	}
}

// Start 轮询 outbox，并每隔 scanInterval 做一次全量扫描；返回停止函数
func (r *Reconciler) Start(scanInterval time.Duration) func(context.Context) error {
	if scanInterval <= 0 {
		scanInterval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poll := time.NewTicker(r.pollInterval)
		scan := time.NewTicker(scanInterval)
		defer poll.Stop()
		defer scan.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				if _, _, err := r.ProcessOutbox(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("outbox poll failed", zap.Error(err))
				}
			case <-scan.C:
				rep, err := r.Scan(ctx)
				if err != nil && ctx.Err() == nil {
					logger.Warn("reconcile scan failed", zap.Error(err))
					continue
				}
				logger.Info("reconcile scan finished", zap.Any("report", rep))
			}
		}
	}()
	return func(stopCtx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
}

// RunOnce drains the outbox and then runs a full scan.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	for {
		applied, failed, err := r.ProcessOutbox(ctx)
		rep.RepairsApplied += applied
		rep.RepairsFailed += failed
		if err != nil {
			return rep, err
		}
		// 失败的记录已放回 pending，本轮不再重复认领
		if applied+failed < r.claimLimit || failed > 0 {
			break
		}
	}
	scan, err := r.Scan(ctx)
	scan.RepairsApplied = rep.RepairsApplied
	scan.RepairsFailed = rep.RepairsFailed
	return scan, err
}

// ProcessOutbox claims one batch of repair records and replays them.
func (r *Reconciler) ProcessOutbox(ctx context.Context) (applied, failed int, err error) {
	batch, err := r.outbox.Claim(ctx, r.claimLimit, r.lease)
	if err != nil {
		return 0, 0, err
	}
	for _, ob := range batch {
		rp := Repair{Kind: ob.Kind, SubjectID: ob.SubjectID, ObjectID: ob.ObjectID}
		changed, aErr := applyRepair(ctx, r.rel, r.eng, rp)
		if aErr != nil {
			failed++
			logger.Warn("repair replay failed",
				zap.String("id", ob.ID), zap.String("kind", string(ob.Kind)),
				zap.Int("attempts", ob.Attempts+1), zap.Error(aErr))
			if err := r.outbox.Release(ctx, ob.ID, aErr); err != nil {
				return applied, failed, err
			}
			continue
		}
		if err := r.outbox.MarkDone(ctx, ob.ID); err != nil {
			return applied, failed, err
		}
		applied++
		if changed {
			r.metrics.ObserveRepair("outbox", string(ob.Kind))
		}
	}
	return applied, failed, nil
}

// Scan walks every relation table and heals asymmetry found.
func (r *Reconciler) Scan(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	var err error
	if rep.FansAdded, err = r.scanFollows(ctx); err != nil {
		return rep, err
	}
	if rep.FansRemoved, err = r.scanFans(ctx); err != nil {
		return rep, err
	}
	if rep.WishesAdded, err = r.scanCollaborations(ctx); err != nil {
		return rep, err
	}
	if rep.WishesRemoved, err = r.scanWishes(ctx); err != nil {
		return rep, err
	}
	if rep.LikesRecounted, err = r.eng.eng.RecountLikes(ctx); err != nil {
		return rep, err
	}
	if rep.LikesRecounted > 0 {
		logger.Warn("like counters drifted", zap.Int64("ideas", rep.LikesRecounted))
	}
	return rep, nil
}

// scanFollows adds followers rows missing for an existing follow.
func (r *Reconciler) scanFollows(ctx context.Context) (int, error) {
	n := 0
	for offset := 0; ; offset += r.batchSize {
		rows, err := r.rel.follows.Scan(ctx, offset, r.batchSize)
		if err != nil {
			return n, err
		}
		for _, f := range rows {
			changed, err := r.rel.SyncFollowPair(ctx, f.FollowerID, f.FolloweeID)
			if err != nil {
				return n, err
			}
			if changed {
				n++
				r.metrics.ObserveRepair("scan", string(model.RepairFollowPair))
			}
		}
		if len(rows) < r.batchSize {
			return n, nil
		}
	}
}

// scanFans removes followers rows with no matching follow. Rows are collected
// first so deletes do not shift the scan window.
func (r *Reconciler) scanFans(ctx context.Context) (int, error) {
	var pairs []Repair
	for offset := 0; ; offset += r.batchSize {
		rows, err := r.rel.fans.Scan(ctx, offset, r.batchSize)
		if err != nil {
			return 0, err
		}
		for _, f := range rows {
			ok, err := r.rel.IsFollowing(ctx, f.FanID, f.UserID)
			if err != nil {
				return 0, err
			}
			if !ok {
				pairs = append(pairs, followRepair(f.FanID, f.UserID))
			}
		}
		if len(rows) < r.batchSize {
			break
		}
	}
	return r.syncAll(ctx, pairs)
}

func (r *Reconciler) scanCollaborations(ctx context.Context) (int, error) {
	n := 0
	for offset := 0; ; offset += r.batchSize {
		rows, err := r.eng.eng.ScanCollaborations(ctx, offset, r.batchSize)
		if err != nil {
			return n, err
		}
		for _, c := range rows {
			changed, err := r.eng.SyncWishPair(ctx, c.OwnerID, c.UserID)
			if err != nil {
				return n, err
			}
			if changed {
				n++
				r.metrics.ObserveRepair("scan", string(model.RepairWishPair))
			}
		}
		if len(rows) < r.batchSize {
			return n, nil
		}
	}
}

// scanWishes removes wishes whose wisher no longer collaborates on any of the owner's ideas.
func (r *Reconciler) scanWishes(ctx context.Context) (int, error) {
	var pairs []Repair
	for offset := 0; ; offset += r.batchSize {
		rows, err := r.rel.wishes.Scan(ctx, offset, r.batchSize)
		if err != nil {
			return 0, err
		}
		for _, w := range rows {
			ok, err := r.eng.eng.CollaboratesWithOwner(ctx, w.UserID, w.WisherID)
			if err != nil {
				return 0, err
			}
			if !ok {
				pairs = append(pairs, wishRepair(w.UserID, w.WisherID))
			}
		}
		if len(rows) < r.batchSize {
			break
		}
	}
	return r.syncAll(ctx, pairs)
}

func (r *Reconciler) syncAll(ctx context.Context, pairs []Repair) (int, error) {
	n := 0
	for _, rp := range pairs {
		changed, err := applyRepair(ctx, r.rel, r.eng, rp)
		if err != nil {
			return n, err
		}
		if changed {
			n++
			r.metrics.ObserveRepair("scan", string(rp.Kind))
		}
	}
	return n, nil
}
