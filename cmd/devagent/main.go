package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/conf"
	"github.com/lk2023060901/agent-chat/internal/devagent"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
	backend    = flag.String("backend", "", "override devagent.backend (mock | openai)")
)

func main() {
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *backend != "" {
		config.DevAgent.Backend = *backend
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	logger.SetGlobal(log)

	b, err := devagent.NewBackend(config.DevAgent, log)
	if err != nil {
		log.Fatal("failed to create backend", zap.Error(err))
	}

	policy := biz.UploadPolicy{
		MaxSize:           config.Upload.MaxSize,
		MaxFiles:          config.Upload.MaxFiles,
		AllowedExtensions: config.Upload.AllowedExtensions,
	}
	srv, err := devagent.New(config.DevAgent, policy, b, log)
	if err != nil {
		log.Fatal("failed to create dev agent", zap.Error(err))
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("dev agent stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error("dev agent forced to shutdown", zap.Error(err))
	}
	log.Info("dev agent exited")
}
