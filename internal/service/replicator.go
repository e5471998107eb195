package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/ideagraph/internal/metrics"
	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/logger"
)

// Repair 一对需要以权威侧重新推导的关系
type Repair struct {
	Kind      model.RepairKind
	SubjectID string
	ObjectID  string
}

type repairJob struct {
	repair Repair
	enqAt  time.Time
}

// Replicator 本地异步补偿执行器：请求路径上重试耗尽的关系对先进内存队列快速修复，
// 队列满或修复失败时落到 outbox，由 Reconciler 兜底。
type Replicator struct {
	rel     *RelationshipStore
	eng     *EngagementStore
	outbox  repository.OutboxRepository
	metrics *metrics.Metrics
	ch      chan repairJob
}

func NewReplicator(rel *RelationshipStore, eng *EngagementStore, outbox repository.OutboxRepository, m *metrics.Metrics, queueSize int) *Replicator {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &Replicator{rel: rel, eng: eng, outbox: outbox, metrics: m, ch: make(chan repairJob, queueSize)}
}

// Start 启动 workers 个消费协程，返回停止函数（停止前尽量排空队列）
func (r *Replicator) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-r.ch:
					r.process(job)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		// 等待队列自然排空一小段时间
		timeout := time.After(2 * time.Second)
	drain:
		for len(r.ch) > 0 {
			select {
			case <-timeout:
				break drain
			case <-ctx.Done():
				break drain
			case <-time.After(50 * time.Millisecond):
			}
		}
		close(stopCh)
		wg.Wait()
		// 剩余任务落 outbox，避免进程退出时丢失
		for {
			select {
			case job := <-r.ch:
				r.persist(ctx, job.repair, nil)
			default:
				return nil
			}
		}
	}
}

// Schedule implements RepairScheduler.
func (r *Replicator) Schedule(ctx context.Context, rp Repair) {
	select {
	case r.ch <- repairJob{repair: rp, enqAt: time.Now()}:
		r.metrics.SetQueueDepth(len(r.ch))
	default:
		logger.Warn("replicator queue full, spilling to outbox",
			zap.String("kind", string(rp.Kind)), zap.String("subject", rp.SubjectID), zap.String("object", rp.ObjectID))
		r.persist(ctx, rp, nil)
	}
}

func (r *Replicator) process(job repairJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.metrics.SetQueueDepth(len(r.ch))

	changed, err := applyRepair(ctx, r.rel, r.eng, job.repair)
	if err != nil {
		r.persist(context.WithoutCancel(ctx), job.repair, err)
		return
	}
	if changed {
		r.metrics.ObserveRepair("replicator", string(job.repair.Kind))
	}
	logger.Debug("repair applied",
		zap.String("kind", string(job.repair.Kind)),
		zap.Bool("changed", changed),
		zap.Duration("lag", time.Since(job.enqAt)))
}

func (r *Replicator) persist(ctx context.Context, rp Repair, cause error) {
	if err := r.outbox.Enqueue(ctx, rp.Kind, rp.SubjectID, rp.ObjectID); err != nil {
		logger.Error("repair lost: outbox enqueue failed",
			zap.String("kind", string(rp.Kind)),
			zap.String("subject", rp.SubjectID),
			zap.String("object", rp.ObjectID),
			zap.NamedError("cause", cause),
			zap.Error(err))
	}
}

// QueueLen 返回当前队列长度（采样值）
func (r *Replicator) QueueLen() int { return len(r.ch) }

// applyRepair re-derives the redundant side of a pair from its authoritative side.
func applyRepair(ctx context.Context, rel *RelationshipStore, eng *EngagementStore, rp Repair) (bool, error) {
	switch rp.Kind {
	case model.RepairFollowPair:
		return rel.SyncFollowPair(ctx, rp.SubjectID, rp.ObjectID)
	case model.RepairWishPair:
		return eng.SyncWishPair(ctx, rp.SubjectID, rp.ObjectID)
	default:
		logger.Warn("unknown repair kind", zap.String("kind", string(rp.Kind)))
		return false, nil
	}
}
