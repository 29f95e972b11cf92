package data

import (
	"context"
	"fmt"

	"order-service/internal/biz"
	"order-service/internal/constants"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// orderEventPublisher 通过 RocketMQ 投递订单事件
// order.create 以延迟消息发送，到期后由关单消费者处理。
type orderEventPublisher struct {
	data *Data
	log  *log.Helper
}

// NewOrderEventPublisher 创建订单事件发布者
func NewOrderEventPublisher(data *Data, logger log.Logger) biz.OrderEventPublisher {
	return &orderEventPublisher{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// PublishOrderCreated 发送 order.create，消息体为订单号
func (p *orderEventPublisher) PublishOrderCreated(ctx context.Context, orderSn string) error {
	if p.data.mq == nil {
		// 未启用 RocketMQ 时由定时任务兜底关单
		p.log.Debugf("rocketmq disabled, skip order.create: orderSn=%s", orderSn)
		return nil
	}

	topic := p.data.mqc.Topic
	if topic == "" {
		topic = constants.DefaultOrderTopic
	}
	msg := primitive.NewMessage(topic, []byte(orderSn)).
		WithTag(constants.EventOrderCreate).
		WithKeys([]string{orderSn})
	if p.data.mqc.DelayLevel > 0 {
		msg.WithDelayTimeLevel(int(p.data.mqc.DelayLevel))
	}

	res, err := p.data.mq.SendSync(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send order.create: %w", err)
	}
	if res.Status != primitive.SendOK {
		return fmt.Errorf("failed to send order.create: status=%d", res.Status)
	}
	p.log.Infof("order.create sent: orderSn=%s, msgId=%s", orderSn, res.MsgID)
	return nil
}
