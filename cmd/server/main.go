package main

import (
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"exam-quiz/internal/api"
	"exam-quiz/internal/config"
	"exam-quiz/internal/db"
	"exam-quiz/internal/logger"
	"exam-quiz/internal/services"
	"exam-quiz/internal/session"
	"exam-quiz/internal/store"
)

func main() {
	cfg := config.Load()

	if err := logger.Initialize(cfg.Env, cfg.LogLevel); err != nil {
		log.Fatalf("initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zlog := logger.Get()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		zlog.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	snapshots := store.NewSQLiteStore(conn)
	sess := session.New(snapshots, zlog)

	pdfService := services.NewPDFService()
	documentService := services.NewDocumentService(conn, cfg.UploadDir)
	extractionService := services.NewExtractionService(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMEndpoint)
	ingestionService := services.NewIngestionService(documentService, pdfService, extractionService)

	server := api.NewServer(extractionService, ingestionService, sess, zlog)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
	}

	zlog.Info("listening", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("server failed", zap.Error(err))
	}
}
