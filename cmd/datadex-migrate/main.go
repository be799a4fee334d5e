package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/datadex/pkg/catalog"
	"github.com/cuemby/datadex/pkg/config"
)

var (
	params  = flag.String("database-params", "", "Connection parameters (default: DD_DATABASE_PARAMS)")
	timeout = flag.Duration("timeout", 60*time.Second, "Migration timeout")
)

// Standalone migration runner for deployments where the schema is managed
// separately from the server process. The server also migrates at startup,
// so running this is optional.
func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	log.Println("Datadex Database Migration Tool")

	connParams := *params
	if connParams == "" {
		connParams = config.Load().DatabaseParams
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := catalog.Migrate(ctx, connParams); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✓ Migration completed successfully")
}
