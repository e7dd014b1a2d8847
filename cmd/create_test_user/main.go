package main

import (
	"context"
	"flag"
	"os"
	"time"

	"trivia_backend/internal/db"
	"trivia_backend/internal/domain"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/repository/mongodb"
	"trivia_backend/internal/service"

	"github.com/joho/godotenv"
)

// Issues a JWT for a test fid. With MONGODB_URI set it also creates the currency
// account and can credit it with -fund.
func main() {
	_ = godotenv.Load()
	fid := flag.Int64("fid", 1234567, "farcaster id")
	fund := flag.Int64("fund", 0, "QT to credit to the account")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := service.InitJWT(os.Getenv("JWT_SECRET")); err != nil {
		logger.Fatal("JWT_SECRET not set")
	}

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client, database, err := db.ConnectMongo(ctx, uri, os.Getenv("MONGODB_DATABASE"))
		if err != nil {
			logger.Fatal("mongodb", "error", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		store := mongodb.NewStore(client, database, false)
		a, err := store.Accounts().GetOrCreate(ctx, *fid)
		if err != nil {
			logger.Fatal("create account failed", "error", err)
		}
		if *fund > 0 {
			if a, err = store.Accounts().Apply(ctx, *fid, domain.AccountDelta{Balance: *fund}); err != nil {
				logger.Fatal("fund account failed", "error", err)
			}
		}
		logger.Info("account ready", "fid", a.FID, "qt_balance", a.QTBalance)
	}

	token, err := service.GenerateJWT(*fid, *ttl)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}
	logger.Info("token issued", "fid", *fid, "token", token)
}
