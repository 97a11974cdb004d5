package main

import (
	"context"
	"log"

	"collabsearch-be/internal/bootstrap"
	"collabsearch-be/internal/config"
	"collabsearch-be/internal/server"
	"collabsearch-be/internal/tracer"
	"collabsearch-be/pkg/database"
)

func main() {
	// 0. Initialize tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load configuration
	cfg := config.Load()

	// 2. Initialize database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if err := database.Migrate(gormDB); err != nil {
		log.Panicf("Unable to run migrations: %v", err)
	}

	// 3. Bootstrap dependencies
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Sequencer.Stop()

	// 4. Start background services
	if err := container.BroadcastConsumer.Start(context.Background()); err != nil {
		log.Panicf("Unable to start broadcast consumer: %v", err)
	}

	// 5. Run server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
