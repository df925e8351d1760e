package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/aulanet/aulanet-backend/internal/handlers"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/utils"
)

type RouterConfig struct {
	UsersHandler           *handlers.UsersHandler
	MediaHandler           *handlers.MediaHandler
	NotesHandler           *handlers.NotesHandler
	TopicsHandler          *handlers.TopicsHandler
	QuizzesHandler         *handlers.QuizzesHandler
	SessionsHandler        *handlers.SessionsHandler
	RecommendationsHandler *handlers.RecommendationsHandler
	ProvidersHandler       *handlers.ProvidersHandler
	JobsHandler            *handlers.JobsHandler
	EventsHandler          *handlers.EventsHandler
	Log                    *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", cfg.Log)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(origins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Users
		api.POST("/users", cfg.UsersHandler.Create)
		api.GET("/users/:id", cfg.UsersHandler.Get)
		api.GET("/users/:id/notes", cfg.NotesHandler.ListByUser)
		api.GET("/users/:id/sessions", cfg.SessionsHandler.ListByUser)
		api.GET("/users/:id/jobs", cfg.JobsHandler.ListByUser)
		api.GET("/users/:id/events", cfg.EventsHandler.Stream)
		api.GET("/users/:id/recommendations", cfg.RecommendationsHandler.ForUser)
		api.GET("/users/:id/quizzes/:quizId/recommendations", cfg.RecommendationsHandler.ForQuiz)

		// Media pipeline
		api.POST("/media", cfg.MediaHandler.Create)
		api.GET("/media/:id", cfg.MediaHandler.Get)
		api.POST("/media/:id/process", cfg.MediaHandler.Process)

		// Notes
		api.POST("/transcripts/:id/notes", cfg.NotesHandler.Generate)
		api.POST("/transcripts/:id/concept-map", cfg.NotesHandler.GenerateConceptMap)
		api.GET("/transcripts/:id/notes", cfg.NotesHandler.ListByTranscript)
		api.GET("/notes/:id", cfg.NotesHandler.Get)

		// Topics
		api.POST("/notes/:id/topics", cfg.TopicsHandler.Extract)
		api.GET("/notes/:id/topics", cfg.TopicsHandler.ListByNote)
		api.POST("/topics/:id/expand", cfg.TopicsHandler.Expand)
		api.POST("/topics/:id/sections", cfg.TopicsHandler.AddSection)
		api.PATCH("/topics/:id", cfg.TopicsHandler.Update)
		api.DELETE("/topics/:id", cfg.TopicsHandler.Delete)
		api.POST("/topics/:id/embedding", cfg.TopicsHandler.BuildEmbedding)
		api.GET("/topics/similar", cfg.TopicsHandler.Similar)

		// Quizzes
		api.POST("/notes/:id/quizzes", cfg.QuizzesHandler.Generate)
		api.GET("/notes/:id/quizzes", cfg.QuizzesHandler.ListByNote)
		api.GET("/quizzes/:id", cfg.QuizzesHandler.Get)
		api.DELETE("/quizzes/:id", cfg.QuizzesHandler.Delete)

		// Sessions and answers
		api.POST("/sessions", cfg.SessionsHandler.Start)
		api.GET("/sessions/:id", cfg.SessionsHandler.Get)
		api.POST("/sessions/:id/abandon", cfg.SessionsHandler.Abandon)
		api.GET("/sessions/:id/answers", cfg.SessionsHandler.ListAnswers)
		api.POST("/answers", cfg.SessionsHandler.SubmitAnswer)

		// AI providers
		api.GET("/ai/providers", cfg.ProvidersHandler.List)
		api.PUT("/ai/providers/current", cfg.ProvidersHandler.Switch)

		// Jobs
		api.GET("/jobs/:id", cfg.JobsHandler.Get)
	}

	return router
}
