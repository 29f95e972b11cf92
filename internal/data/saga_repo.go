package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-service/internal/biz"
	"order-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sagaRepo saga 状态与流水
type sagaRepo struct {
	data *Data
	log  *log.Helper
}

// NewSagaRepo 创建 saga repo
func NewSagaRepo(data *Data, logger log.Logger) biz.SagaRepo {
	return &sagaRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// SaveSaga 更新 saga 当前状态并追加流水，两者在同一事务中
func (r *sagaRepo) SaveSaga(ctx context.Context, inst *biz.SagaInstance, step string) error {
	m, err := toSagaModel(inst)
	if err != nil {
		return err
	}
	entry := &model.SagaLog{
		SagaID:    inst.ID,
		Name:      inst.Name,
		Step:      step,
		Status:    string(inst.Status),
		DoneSteps: inst.DoneSteps,
		TraceID:   inst.TraceID,
		SpanID:    inst.SpanID,
	}
	if n := len(inst.Errors); n > 0 {
		entry.Error = inst.Errors[n-1]
	}

	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "done_steps", "payload", "errors", "updated_at"}),
		}).Create(m).Error; err != nil {
			return fmt.Errorf("failed to save saga %s: %w", inst.ID, err)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append saga log %s: %w", inst.ID, err)
		}
		return nil
	})
}

// ListPendingSagas 查询未结束且长时间未推进的 saga
func (r *sagaRepo) ListPendingSagas(ctx context.Context, statuses []biz.SagaStatus, before time.Time, limit int) ([]*biz.SagaInstance, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	var ms []*model.SagaInstance
	err := r.data.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", values, before).
		Order("updated_at").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sagas: %w", err)
	}

	insts := make([]*biz.SagaInstance, 0, len(ms))
	for _, m := range ms {
		inst, err := toSagaInstance(m)
		if err != nil {
			// 无法解析的记录跳过，避免阻塞整批恢复
			r.log.Errorf("decode saga failed: id=%s, error=%v", m.ID, err)
			continue
		}
		insts = append(insts, inst)
	}
	return insts, nil
}

// FindActiveSaga 查询订单上最近一个未结束的同名 saga
func (r *sagaRepo) FindActiveSaga(ctx context.Context, name, bizKey string, statuses []biz.SagaStatus) (*biz.SagaInstance, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	var m model.SagaInstance
	err := r.data.db.WithContext(ctx).
		Where("biz_key = ? AND name = ? AND status IN ?", bizKey, name, values).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active saga: %w", err)
	}
	inst, err := toSagaInstance(&m)
	if err != nil {
		return nil, fmt.Errorf("failed to decode saga %s: %w", m.ID, err)
	}
	return inst, nil
}

func toSagaModel(inst *biz.SagaInstance) (*model.SagaInstance, error) {
	payload, err := json.Marshal(inst.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode saga payload: %w", err)
	}
	errs, err := json.Marshal(inst.Errors)
	if err != nil {
		return nil, fmt.Errorf("failed to encode saga errors: %w", err)
	}
	return &model.SagaInstance{
		ID:        inst.ID,
		Name:      inst.Name,
		BizKey:    inst.BizKey,
		Status:    string(inst.Status),
		DoneSteps: inst.DoneSteps,
		Payload:   string(payload),
		Errors:    string(errs),
		TraceID:   inst.TraceID,
		SpanID:    inst.SpanID,
		CreatedAt: inst.CreatedAt,
		UpdatedAt: inst.UpdatedAt,
	}, nil
}

func toSagaInstance(m *model.SagaInstance) (*biz.SagaInstance, error) {
	inst := &biz.SagaInstance{
		ID:        m.ID,
		Name:      m.Name,
		BizKey:    m.BizKey,
		Status:    biz.SagaStatus(m.Status),
		DoneSteps: m.DoneSteps,
		TraceID:   m.TraceID,
		SpanID:    m.SpanID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Payload != "" {
		var p biz.SagaPayload
		if err := json.Unmarshal([]byte(m.Payload), &p); err != nil {
			return nil, err
		}
		inst.Payload = &p
	}
	if m.Errors != "" && m.Errors != "null" {
		if err := json.Unmarshal([]byte(m.Errors), &inst.Errors); err != nil {
			return nil, err
		}
	}
	return inst, nil
}
