package server

import (
	"context"

	"order-service/internal/biz"
	"order-service/internal/conf"
	"order-service/internal/constants"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer 消费延迟投递的 order.create 消息，到期关闭未支付订单
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	uc      *biz.OrderUseCase
	conf    *conf.Data_Rocketmq
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer 创建 RocketMQ 消费者
func NewMQConsumerServer(c *conf.Bootstrap, uc *biz.OrderUseCase, logger log.Logger) *MQConsumerServer {
	l := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{log: l}
	}
	mqc := c.Data.Rocketmq

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(mqc.NameServers)),
		consumer.WithGroupName(mqc.GroupName),
		consumer.WithRetry(int(mqc.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(1),
	)
	if err != nil {
		// 关单仍由定时任务兜底
		l.Errorf("init consumer error: %v", err)
		return &MQConsumerServer{log: l}
	}

	return &MQConsumerServer{
		c:       r,
		uc:      uc,
		conf:    mqc,
		log:     l,
		enabled: true,
	}
}

// Start 订阅并启动消费者
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	topic := s.conf.Topic
	if topic == "" {
		topic = constants.DefaultOrderTopic
	}
	s.log.Infof("Starting MQConsumerServer, topic: %s", topic)

	selector := consumer.MessageSelector{Type: consumer.TAG, Expression: constants.EventOrderCreate}
	if err := s.c.Subscribe(topic, selector, s.handler); err != nil {
		s.log.Errorf("Failed to subscribe to topic %s: %v", topic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop 停止消费者
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		orderSn := string(msg.Body)
		if orderSn == "" {
			s.log.Warnf("skip empty order.create message: msgId=%s", msg.MsgId)
			continue
		}
		closed, err := s.uc.CloseOrder(ctx, orderSn)
		if err != nil {
			s.log.Errorf("CloseOrder failed: orderSn=%s, reconsumeTimes=%d, error=%v", orderSn, msg.ReconsumeTimes, err)
			return consumer.ConsumeRetryLater, nil
		}
		if closed {
			s.log.Infof("order closed on payment timeout: orderSn=%s", orderSn)
		}
	}
	return consumer.ConsumeSuccess, nil
}
