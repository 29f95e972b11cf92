package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	orderErrors "order-service/internal/errors"
	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// SagaStatus saga 状态
type SagaStatus string

const (
	SagaStatusStarted      SagaStatus = "STARTED"
	SagaStatusStepDone     SagaStatus = "STEP_DONE"
	SagaStatusCompleted    SagaStatus = "COMPLETED"
	SagaStatusCompensating SagaStatus = "COMPENSATING"
	SagaStatusCompensated  SagaStatus = "COMPENSATED"
	SagaStatusFailed       SagaStatus = "FAILED"   // 补偿失败，等待补偿任务重试
	SagaStatusRetrying     SagaStatus = "RETRYING" // 关键步骤已成功，后续步骤失败，等待向前重试
)

// PendingSagaStatuses 需要补偿任务接管的状态
var PendingSagaStatuses = []SagaStatus{
	SagaStatusStarted,
	SagaStatusStepDone,
	SagaStatusCompensating,
	SagaStatusFailed,
	SagaStatusRetrying,
}

// compensationTimeout 补偿动作的独立超时，不受请求取消影响
const compensationTimeout = 30 * time.Second

// SagaPayload saga 执行上下文，随 saga 一起持久化，恢复时原样还原
type SagaPayload struct {
	SagaID       string      `json:"saga_id"`
	OrderID      int64       `json:"order_id"`
	OrderSn      string      `json:"order_sn"`
	MemberID     int64       `json:"member_id"`
	PayAmount    int64       `json:"pay_amount"`
	Order        *Order      `json:"order,omitempty"`
	Locks        []*SkuLock  `json:"locks,omitempty"`
	TargetStatus OrderStatus `json:"target_status,omitempty"`
}

// SagaStep saga 步骤
type SagaStep struct {
	Name       string
	Action     func(ctx context.Context, p *SagaPayload) error
	Compensate func(ctx context.Context, p *SagaPayload) error // nil 表示无需补偿
	// Pivot 关键步骤：成功后不再回滚，之后的步骤失败只能向前重试。
	// Pivot 及其之后的步骤必须幂等。
	Pivot bool
}

// SagaDefinition saga 定义
type SagaDefinition struct {
	Name  string
	Steps []SagaStep
}

// SagaInstance saga 运行实例
type SagaInstance struct {
	ID        string
	Name      string
	BizKey    string // 订单号
	Status    SagaStatus
	DoneSteps int
	Payload   *SagaPayload
	Errors    []string
	TraceID   string
	SpanID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SagaRepo saga 持久化接口
type SagaRepo interface {
	// SaveSaga 保存实例当前状态并追加一条日志
	SaveSaga(ctx context.Context, inst *SagaInstance, step string) error
	// ListPendingSagas 查询 before 之前未推进且未结束的 saga
	ListPendingSagas(ctx context.Context, statuses []SagaStatus, before time.Time, limit int) ([]*SagaInstance, error)
	// FindActiveSaga 查询业务键上最近一个未结束的同名 saga，不存在返回 nil
	FindActiveSaga(ctx context.Context, name, bizKey string, statuses []SagaStatus) (*SagaInstance, error)
}

// SagaCoordinator saga 协调器
type SagaCoordinator struct {
	repo    SagaRepo
	mu      sync.RWMutex
	defs    map[string]*SagaDefinition
	log     *log.Helper
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewSagaCoordinator 创建 saga 协调器
func NewSagaCoordinator(repo SagaRepo, logger log.Logger) *SagaCoordinator {
	return &SagaCoordinator{
		repo:    repo,
		defs:    make(map[string]*SagaDefinition),
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
		now:     time.Now,
	}
}

// Register 注册 saga 定义，同名覆盖
func (c *SagaCoordinator) Register(def *SagaDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.Name] = def
}

func (c *SagaCoordinator) definition(name string) (*SagaDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[name]
	if !ok {
		return nil, fmt.Errorf("saga %s is not registered", name)
	}
	return def, nil
}

// Execute 执行 saga，失败时按 LIFO 顺序补偿已完成步骤，返回导致失败的原始错误
func (c *SagaCoordinator) Execute(ctx context.Context, name, bizKey string, payload *SagaPayload) error {
	def, err := c.definition(name)
	if err != nil {
		return err
	}

	start := c.now()
	inst := &SagaInstance{
		ID:        uuid.NewString(),
		Name:      name,
		BizKey:    bizKey,
		Status:    SagaStatusStarted,
		Payload:   payload,
		CreatedAt: start,
		UpdatedAt: start,
	}
	payload.SagaID = inst.ID
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		inst.TraceID = sc.TraceID().String()
		inst.SpanID = sc.SpanID().String()
	}

	if err := c.save(ctx, inst, ""); err != nil {
		return fmt.Errorf("failed to start saga %s: %w", name, err)
	}

	defer func() {
		c.metrics.SagaDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	return c.run(ctx, def, inst)
}

// Active 查询业务键上未结束的 saga
func (c *SagaCoordinator) Active(ctx context.Context, name, bizKey string) (*SagaInstance, error) {
	inst, err := c.repo.FindActiveSaga(ctx, name, bizKey, PendingSagaStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to find active saga %s: %w", name, err)
	}
	return inst, nil
}

// Recover 恢复中断的 saga：越过关键步骤的向前重试，否则补偿
func (c *SagaCoordinator) Recover(ctx context.Context, inst *SagaInstance) error {
	def, err := c.definition(inst.Name)
	if err != nil {
		return err
	}
	if inst.Payload == nil {
		inst.Payload = &SagaPayload{}
	}
	inst.Payload.SagaID = inst.ID

	switch inst.Status {
	case SagaStatusCompleted, SagaStatusCompensated:
		return nil
	case SagaStatusCompensating, SagaStatusFailed:
		return c.compensate(ctx, def, inst, c.inFlight(def, inst))
	case SagaStatusRetrying:
		return c.run(ctx, def, inst)
	}

	// STARTED / STEP_DONE：进程在执行中途退出
	if inst.DoneSteps >= len(def.Steps) {
		inst.Status = SagaStatusCompleted
		return c.save(ctx, inst, "")
	}
	if pivotPassed(def, inst.DoneSteps) || def.Steps[inst.DoneSteps].Pivot {
		return c.run(ctx, def, inst)
	}
	return c.compensate(ctx, def, inst, c.inFlight(def, inst))
}

// run 从 inst.DoneSteps 开始顺序执行剩余步骤
func (c *SagaCoordinator) run(ctx context.Context, def *SagaDefinition, inst *SagaInstance) error {
	for i := inst.DoneSteps; i < len(def.Steps); i++ {
		step := def.Steps[i]
		if err := step.Action(ctx, inst.Payload); err != nil {
			c.metrics.SagaStepTotal.WithLabelValues(def.Name, step.Name, "execute", "failed").Inc()
			c.log.Errorf("saga step failed: saga=%s, id=%s, step=%s, bizKey=%s, error=%v", def.Name, inst.ID, step.Name, inst.BizKey, err)
			inst.Errors = append(inst.Errors, fmt.Sprintf("%s: %v", step.Name, err))

			// 关键步骤结果不确定时同样不能回滚，只能向前重试确认
			if pivotPassed(def, i) || (step.Pivot && errors.Is(err, orderErrors.ErrRemoteUnavailable)) {
				inst.Status = SagaStatusRetrying
				if saveErr := c.save(ctx, inst, step.Name); saveErr != nil {
					c.log.Errorf("save saga failed: id=%s, error=%v", inst.ID, saveErr)
				}
				c.metrics.SagaTotal.WithLabelValues(def.Name, string(inst.Status)).Inc()
				return err
			}

			// 下游超时等情况结果不确定，当前步骤一并补偿（补偿动作需幂等）
			upTo := i
			if errors.Is(err, orderErrors.ErrRemoteUnavailable) {
				upTo = i + 1
			}
			if compErr := c.compensate(ctx, def, inst, upTo); compErr != nil {
				c.log.Errorf("saga compensation incomplete: saga=%s, id=%s, error=%v", def.Name, inst.ID, compErr)
			}
			return err
		}
		c.metrics.SagaStepTotal.WithLabelValues(def.Name, step.Name, "execute", "success").Inc()

		inst.DoneSteps = i + 1
		inst.Status = SagaStatusStepDone
		if inst.DoneSteps == len(def.Steps) {
			inst.Status = SagaStatusCompleted
		}
		if err := c.save(ctx, inst, step.Name); err != nil {
			if pivotPassed(def, inst.DoneSteps) {
				// 之后的步骤幂等，补偿任务会向前推进
				c.log.Warnf("save saga progress failed after pivot: id=%s, step=%s, error=%v", inst.ID, step.Name, err)
				continue
			}
			// 进度未落库，视为当前步骤失败并连同当前步骤一起补偿
			c.log.Errorf("save saga progress failed: id=%s, step=%s, error=%v", inst.ID, step.Name, err)
			inst.Errors = append(inst.Errors, fmt.Sprintf("%s: save progress: %v", step.Name, err))
			if compErr := c.compensate(ctx, def, inst, inst.DoneSteps); compErr != nil {
				c.log.Errorf("saga compensation incomplete: saga=%s, id=%s, error=%v", def.Name, inst.ID, compErr)
			}
			return fmt.Errorf("failed to save saga progress: %w", err)
		}
	}

	c.metrics.SagaTotal.WithLabelValues(def.Name, string(SagaStatusCompleted)).Inc()
	return nil
}

// compensate 按 LIFO 顺序补偿 [0, upTo) 的步骤
func (c *SagaCoordinator) compensate(ctx context.Context, def *SagaDefinition, inst *SagaInstance, upTo int) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	inst.Status = SagaStatusCompensating
	if err := c.save(ctx, inst, ""); err != nil {
		c.log.Warnf("save saga failed: id=%s, error=%v", inst.ID, err)
	}

	var failed error
	for i := upTo - 1; i >= 0; i-- {
		step := def.Steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx, inst.Payload); err != nil {
			c.metrics.SagaStepTotal.WithLabelValues(def.Name, step.Name, "compensate", "failed").Inc()
			c.log.Errorf("saga compensation failed: saga=%s, id=%s, step=%s, bizKey=%s, error=%v", def.Name, inst.ID, step.Name, inst.BizKey, err)
			inst.Errors = append(inst.Errors, fmt.Sprintf("compensate %s: %v", step.Name, err))
			failed = errors.Join(failed, err)
			continue
		}
		c.metrics.SagaStepTotal.WithLabelValues(def.Name, step.Name, "compensate", "success").Inc()
	}

	inst.Status = SagaStatusCompensated
	if failed != nil {
		inst.Status = SagaStatusFailed
	}
	if err := c.save(ctx, inst, ""); err != nil {
		c.log.Errorf("save saga failed: id=%s, error=%v", inst.ID, err)
		failed = errors.Join(failed, err)
	}
	c.metrics.SagaTotal.WithLabelValues(def.Name, string(inst.Status)).Inc()
	return failed
}

// inFlight 恢复时需要补偿的步骤上界：包含可能执行到一半的下一个步骤
func (c *SagaCoordinator) inFlight(def *SagaDefinition, inst *SagaInstance) int {
	if inst.DoneSteps < len(def.Steps) {
		return inst.DoneSteps + 1
	}
	return len(def.Steps)
}

func (c *SagaCoordinator) save(ctx context.Context, inst *SagaInstance, step string) error {
	inst.UpdatedAt = c.now()
	return c.repo.SaveSaga(ctx, inst, step)
}

// pivotPassed 前 done 个步骤中是否包含关键步骤
func pivotPassed(def *SagaDefinition, done int) bool {
	for i := 0; i < done && i < len(def.Steps); i++ {
		if def.Steps[i].Pivot {
			return true
		}
	}
	return false
}

// RecoverPending 扫描卡住的 saga 并逐个恢复，返回成功处理的数量
func (c *SagaCoordinator) RecoverPending(ctx context.Context, before time.Time, limit int, guard func(ctx context.Context, inst *SagaInstance, fn func() error) error) (int, error) {
	insts, err := c.repo.ListPendingSagas(ctx, PendingSagaStatuses, before, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending sagas: %w", err)
	}

	recovered := 0
	for _, inst := range insts {
		err := guard(ctx, inst, func() error {
			return c.Recover(ctx, inst)
		})
		if err != nil {
			c.log.Warnf("recover saga failed: saga=%s, id=%s, bizKey=%s, error=%v", inst.Name, inst.ID, inst.BizKey, err)
			continue
		}
		recovered++
	}
	return recovered, nil
}
