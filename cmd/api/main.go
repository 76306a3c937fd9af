package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	_ "device-geocoder/docs"
	"device-geocoder/internal/app"
	"device-geocoder/internal/config"
	"device-geocoder/internal/handler"
	"device-geocoder/internal/logger"
	"device-geocoder/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Msg("cannot load .env")
	}

	config, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logger.Setup(config.LogLevel, config.LogFormat)

	ctx := context.Background()

	// Database connection is only needed for a table backed reference set
	var store app.Store
	if config.ReferenceSource == app.ReferenceFromDB {
		s, closeStore, err := app.OpenStore(ctx, config)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot connect to db")
		}
		defer closeStore()
		store = s
	}

	units, err := app.LoadReference(ctx, config, store)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load reference units")
	}

	// Initialize layers
	matcher, err := app.NewMatcher(config, units)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot build matcher")
	}

	matchService, closeService := app.NewService(config, matcher)
	defer closeService()

	matchHandler := handler.NewMatchHandler(matchService, config.MatchThreshold)
	randomPointHandler := handler.NewRandomPointHandler(matchService)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"reference_units": matcher.Index().Len(),
		})
	})

	r.GET("/match", matchHandler.Match)
	r.GET("/random-point", randomPointHandler.RandomPoint)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	log.Info().Str("addr", config.ServerAddress).Int("reference_units", matcher.Index().Len()).Msg("starting server")
	if err := r.Run(config.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
