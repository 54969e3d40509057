package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Debounce 编辑器保存时会连续触发多次事件，合并为一次重载
var Debounce = time.Second

type ConfigReloader func(cfg *config.Config)

// Watch 监听配置文件所在目录，文件变化后重新加载并回调；加载失败时保留旧配置
func Watch(ctx context.Context, configPath string, reloader ConfigReloader) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	// 监听目录而不是文件，rename 方式保存时文件句柄会失效
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go run(ctx, watcher, absPath, reloader)
	logger.Log.Info("配置热更新已开启", zap.String("path", absPath))
	return nil
}

func run(ctx context.Context, watcher *fsnotify.Watcher, absPath string, reloader ConfigReloader) {
	defer watcher.Close()

	timer := time.NewTimer(Debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// 防抖处理
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(Debounce)
		case <-timer.C:
			// 重新加载配置
			newCfg, err := config.LoadConfig(filepath.Dir(absPath))
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			reloader(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
