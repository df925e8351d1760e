package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aulanet/aulanet-backend/internal/db"
	"github.com/aulanet/aulanet-backend/internal/handlers"
	"github.com/aulanet/aulanet-backend/internal/jobs"
	"github.com/aulanet/aulanet-backend/internal/jobs/pipeline"
	"github.com/aulanet/aulanet-backend/internal/jobs/runtime"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/server"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/sse"
	"github.com/aulanet/aulanet-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	mediaAssetRepo := repos.NewMediaAssetRepo(thePG, log)
	transcriptRepo := repos.NewTranscriptRepo(thePG, log)
	noteRepo := repos.NewNoteRepo(thePG, log)
	topicRepo := repos.NewTopicRepo(thePG, log)
	quizRepo := repos.NewQuizRepo(thePG, log)
	questionRepo := repos.NewQuestionRepo(thePG, log)
	sessionRepo := repos.NewStudySessionRepo(thePG, log)
	answerRepo := repos.NewAnswerRepo(thePG, log)
	embeddingRepo := repos.NewEmbeddingRepo(thePG, log)
	jobRunRepo := repos.NewJobRunRepo(thePG, log)

	// AI providers
	log.Info("Setting up AI providers from main...")
	selector := services.NewAISelector(log)
	if gemini, err := services.NewGeminiProvider(ctx, log); err != nil {
		log.Warn("Gemini provider unavailable", "error", err.Error())
	} else {
		selector.Register(gemini)
	}
	if grok, err := services.NewGrokProvider(log); err != nil {
		log.Warn("Grok provider unavailable", "error", err.Error())
	} else {
		selector.Register(grok)
	}
	selector.DefaultProviderFromEnv(log)

	// Services
	log.Info("Setting up services from main...")
	hub := sse.NewHub(log)
	notifier := sse.NewNotifier(hub, services.NewLogJobNotifier(log))
	jobSvc := services.NewJobService(thePG, jobRunRepo, notifier, log)
	mediaTools := services.NewMediaToolsService(log)
	speech, err := services.NewSpeechProviderService(log)
	if err != nil {
		log.Fatal("Speech provider init failed", "error", err)
	}
	notesSvc := services.NewNotesGeneratorService(selector, noteRepo, transcriptRepo, log)
	topicSvc := services.NewTopicExtractorService(selector, topicRepo, noteRepo, log)
	quizSvc := services.NewQuizGeneratorService(selector, quizRepo, questionRepo, topicRepo, noteRepo, log)
	embeddingSvc := services.NewEmbeddingService(selector, embeddingRepo, topicRepo, log)
	recSvc := services.NewRecommendationService(sessionRepo, answerRepo, topicRepo, quizRepo, embeddingSvc, log)
	sessionSvc := services.NewStudySessionService(sessionRepo, quizRepo, questionRepo, userRepo, log)
	answerSvc := services.NewAnswerService(thePG, selector, answerRepo, questionRepo, sessionRepo, userRepo, log)

	// Jobs
	log.Info("Setting up job worker from main...")
	registry := runtime.NewRegistry()
	mustRegister(log, registry, pipeline.NewMediaProcessHandler(mediaAssetRepo, transcriptRepo, mediaTools, jobSvc, log))
	mustRegister(log, registry, pipeline.NewTranscribeHandler(transcriptRepo, speech, jobSvc, log))
	mustRegister(log, registry, pipeline.NewNotesGenerateHandler(notesSvc, jobSvc, log))
	mustRegister(log, registry, pipeline.NewTopicExtractHandler(topicSvc, jobSvc, log))
	mustRegister(log, registry, pipeline.NewQuizGenerateHandler(quizSvc, log))
	mustRegister(log, registry, pipeline.NewEmbeddingBuildHandler(embeddingSvc, log))

	worker := jobs.NewWorker(thePG, jobRunRepo, registry, notifier, log)
	worker.Start(ctx)

	// Handlers and router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		UsersHandler:           handlers.NewUsersHandler(userRepo, log),
		MediaHandler:           handlers.NewMediaHandler(mediaAssetRepo, jobSvc, log),
		NotesHandler:           handlers.NewNotesHandler(notesSvc, noteRepo, jobSvc, log),
		TopicsHandler:          handlers.NewTopicsHandler(topicSvc, embeddingSvc, jobSvc, log),
		QuizzesHandler:         handlers.NewQuizzesHandler(quizSvc, jobSvc, log),
		SessionsHandler:        handlers.NewSessionsHandler(sessionSvc, answerSvc, log),
		RecommendationsHandler: handlers.NewRecommendationsHandler(recSvc, log),
		ProvidersHandler:       handlers.NewProvidersHandler(selector, log),
		JobsHandler:            handlers.NewJobsHandler(jobSvc, log),
		EventsHandler:          handlers.NewEventsHandler(hub, log),
		Log:                    log,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}

func mustRegister(log *logger.Logger, registry *runtime.Registry, h runtime.Handler) {
	if err := registry.Register(h); err != nil {
		log.Fatal("Handler registration failed", "job_type", h.Type(), "error", err)
	}
}
