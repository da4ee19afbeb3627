package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/OCharnyshevich/jrblx-server/internal/server"
	"github.com/OCharnyshevich/jrblx-server/internal/server/config"
)

func main() {
	cfg := config.DefaultConfig()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to a YAML config file")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "server port")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace..panic)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text or json)")
	flag.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "maximum concurrent sessions")
	flag.StringVar(&cfg.GeneratorEndpoint, "generator-endpoint", cfg.GeneratorEndpoint, "scene generation service URL")
	flag.StringVar(&cfg.GeneratorAPIKey, "generator-api-key", cfg.GeneratorAPIKey, "scene generation service API key")
	flag.StringVar(&cfg.DefaultProject, "default-project", cfg.DefaultProject, "project file new sessions start from")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for saved projects")
	flag.Parse()

	log := logrus.New()

	if cfgPath != "" {
		fromFile, err := config.Load(cfgPath)
		if err != nil {
			log.WithError(err).Fatal("load config")
		}
		explicit := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		config.Merge(cfg, fromFile, explicit)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("parse log level")
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init server")
	}
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("server error")
		os.Exit(1)
	}
}
