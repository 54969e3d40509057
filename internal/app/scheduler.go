package app

import (
	"context"
	"fmt"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/pkg/logger"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// homeworkCloser 定时关闭到期作业
type homeworkCloser interface {
	AutoClose(ctx context.Context) (int, error)
}

// Scheduler 后台定时任务
type Scheduler struct {
	scheduler *gocron.Scheduler
	homework  homeworkCloser
	interval  time.Duration
}

func NewScheduler(homework homeworkCloser, cfg config.SchedulerConfig) (*Scheduler, error) {
	interval, err := time.ParseDuration(cfg.AutoCloseInterval)
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("invalid scheduler.auto_close_interval %q", cfg.AutoCloseInterval)
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		homework:  homework,
		interval:  interval,
	}, nil
}

// Start 启动后立即执行一次，之后按间隔执行；上一轮未结束时跳过
func (s *Scheduler) Start() {
	if _, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.closeDueHomework); err != nil {
		logger.Log.Error("注册自动关闭任务失败", zap.Error(err))
		return
	}
	s.scheduler.StartAsync()
	logger.Log.Info("定时任务已启动", zap.Duration("autoCloseInterval", s.interval))
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) closeDueHomework() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	if _, err := s.homework.AutoClose(ctx); err != nil {
		logger.Log.Error("自动关闭作业出错", zap.Error(err))
	}
}
