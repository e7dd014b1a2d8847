package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"trivia_backend/internal/db"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/repository/mongodb"

	"github.com/joho/godotenv"
)

// Creates the MongoDB indexes the service relies on. Without -apply it only connects and
// lists the collections that would be touched.
func main() {
	_ = godotenv.Load()
	apply := flag.Bool("apply", false, "create the indexes")
	flag.Parse()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		logger.Fatal("MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, database, err := db.ConnectMongo(ctx, uri, os.Getenv("MONGODB_DATABASE"))
	if err != nil {
		logger.Fatal("mongodb", "error", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if !*apply {
		for _, name := range mongodb.Collections {
			fmt.Println(name)
		}
		return
	}

	store := mongodb.NewStore(client, database, false)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("failed to ensure indexes", "error", err)
	}
	fmt.Printf("indexes ensured on %s\n", database.Name())
}
