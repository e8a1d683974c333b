package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
)

func main() {
	var (
		dir  = flag.String("dir", "./migrations", "migrations directory")
		down = flag.Bool("down", false, "roll all migrations back")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	}
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, *dir)
	defer runner.Close()

	if *down {
		if err := runner.Down(); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Println("rolled back all migrations")
		return
	}

	if err := runner.Up(); err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	version, err := runner.Version()
	if err != nil {
		log.Fatalf("read version: %v", err)
	}
	log.Printf("schema at version %d", version)
}
