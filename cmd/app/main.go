package main

import (
	"flag"
	"log"
	"os"

	"TickWatch/internal/di"
	"TickWatch/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s store=%s mode=%s symbols=%v", cfg.Environment, cfg.Store.Type, cfg.Source.Mode, cfg.Source.Symbols)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v tick_topic=%s signal_topic=%s", cfg.Kafka.Brokers, cfg.Kafka.TickTopic, cfg.Kafka.SignalTopic)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
