package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/MaxChen228/Linker-sub001/internal/config"
	"github.com/MaxChen228/Linker-sub001/internal/repository"
	"github.com/MaxChen228/Linker-sub001/internal/service"
	"github.com/MaxChen228/Linker-sub001/pkg/logger"
	"github.com/MaxChen228/Linker-sub001/pkg/monitoring"
	"github.com/MaxChen228/Linker-sub001/pkg/tracing"
	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	backupOnly := flag.Bool("backup", false, "立即为所有集合各做一次备份，完成后退出")
	purgeOnly := flag.Bool("purge", false, "清理过期的软删除知识点，完成后退出")
	dryRun := flag.Bool("dry-run", false, "配合 -purge：只统计不动数据")
	metricsAddr := flag.String("metrics-addr", ":9100", "指标与健康检查监听地址")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("linker-core", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Warn("追踪初始化失败，继续以无追踪模式运行", zap.Error(err))
		}
	}

	mirror := service.NewMirrorFromConfig(cfg)
	knowledgeRepo := repository.NewKnowledgePointRepository(cfg, mirror)
	practiceRepo := repository.NewPracticeRecordRepository(cfg, mirror)
	knowledgeSvc := service.NewKnowledgePointService(knowledgeRepo, cfg)

	ctx := context.Background()

	if *backupOnly {
		for name, backup := range map[string]func(context.Context) (string, error){
			"knowledge_points": knowledgeRepo.BackupNow,
			"practice_history": practiceRepo.BackupNow,
		} {
			path, err := backup(ctx)
			if err != nil {
				log.Fatalf("Backup %s failed: %v", name, err)
			}
			logger.Log.Info("备份完成", zap.String("collection", name), zap.String("file", path))
		}
		return
	}

	if *purgeOnly {
		res, err := knowledgeSvc.PurgeDeleted(ctx, 0, *dryRun)
		if err != nil {
			log.Fatalf("Purge failed: %v", err)
		}
		logger.Log.Info("清理完成",
			zap.Int("examined", res.Examined),
			zap.Int("purged", res.Purged),
			zap.Int("preserved", res.Preserved),
			zap.Bool("dry_run", res.DryRun))
		return
	}

	monitoring.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Log.Info("维护服务启动", zap.String("addr", *metricsAddr))
	if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
		log.Fatalf("Metrics server failed: %v", err)
	}
}
