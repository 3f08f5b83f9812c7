package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/unimarket/backend/internal/auth"
	"github.com/unimarket/backend/internal/config"
	"github.com/unimarket/backend/internal/db"
	"github.com/unimarket/backend/internal/model"
	"github.com/unimarket/backend/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	verifier, err := auth.NewFirebaseVerifier(context.Background(), cfg.FirebaseProjectID)
	if err != nil {
		log.Fatalf("firebase init error: %v", err)
	}

	srv := server.New(nil, verifier, cfg.AllowedOrigins)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)

	go func() {
		log.Printf("starting server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			log.Printf("db connect error: %v", err)
			return
		}
		srv.SetDB(conn)
		if err := conn.AutoMigrate(&model.User{}, &model.Conversation{}, &model.Message{}); err != nil {
			log.Printf("auto migrate error: %v", err)
		}
	}()

	if err := <-errCh; err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
