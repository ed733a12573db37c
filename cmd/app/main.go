package main

import (
	"flag"
	"log"
	"os"

	"PricePulse/internal/di"
	"PricePulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *configPath, err)
	}
	log.Printf("pricepulse starting env=%s backend=%s port=%d", cfg.Environment, cfg.Backend.Type, cfg.Server.Port)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("wire app: %v", err)
	}
	log.Printf("clickhouse ready db=%s", cfg.ClickHouse.Database)
	if len(cfg.Kafka.Brokers) > 0 {
		log.Printf("kafka producer ready brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	// Blocks until SIGINT/SIGTERM, then drains in-flight work.
	if err := app.Run(); err != nil {
		log.Printf("run: %v", err)
		os.Exit(1)
	}
}
