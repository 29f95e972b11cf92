package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-service/internal/biz"
	"order-service/internal/conf"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

// jobTimeout 单次任务最长执行时间，同时作为任务互斥锁的过期时间
const jobTimeout = 5 * time.Minute

// CronApp Cron 应用结构
type CronApp struct {
	reconcile *biz.ReconcileUseCase
}

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/order-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}
	if bc.Log != nil && bc.Log.Level != "" {
		logConfig.Level = bc.Log.Level
	}

	loggerInstance := logger.NewLogger(logConfig)

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "order-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context) (int, error)
	}{
		// 超时未支付订单关闭 - 每分钟执行
		{"0 * * * * *", biz.JobCloseOverdueOrders, app.reconcile.CloseOverdueOrders},
		// order.create 重新投递 - 每分钟第 20 秒执行
		{"20 * * * * *", biz.JobRepublishEvents, app.reconcile.RepublishOrderEvents},
		// 中断的 saga 恢复 - 每分钟第 40 秒执行
		{"40 * * * * *", biz.JobRecoverSagas, app.reconcile.RecoverSagas},
	}
	for _, job := range jobs {
		job := job
		_, err = cronScheduler.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			count, err := app.reconcile.RunExclusive(ctx, job.name, jobTimeout, job.run)
			if err != nil {
				logHelper.Errorf("[CRON] %s failed: %v", job.name, err)
				return
			}
			if count > 0 {
				logHelper.Infof("[CRON] %s completed: count=%d", job.name, count)
			}
		})
		if err != nil {
			logHelper.Errorf("Failed to add job %s: %v", job.name, err)
		}
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	for _, job := range jobs {
		logHelper.Infof("  - %s: %s", job.name, job.spec)
	}
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
