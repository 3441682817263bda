package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"crisp-academy/backend/config"
	"crisp-academy/backend/internal/repository"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/database"
	applogger "crisp-academy/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CRISP_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log, "admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("get sql.DB failed", zap.Error(err))
	}
	defer sqlDB.Close()

	generator, closeGenerator, err := service.NewTriviaGenerator(&cfg.Trivia, logger)
	if err != nil {
		logger.Fatal("init trivia generator failed", zap.Error(err))
	}
	defer closeGenerator()

	repo := repository.NewRepository(db)
	cli := commandLine{
		sqlDB:       sqlDB,
		users:       repo.User,
		departments: repo.Department,
		trivia:      service.NewTriviaService(repo, generator, nil, cfg.Trivia.QuestionsPerMonth, logger),
		out:         os.Stdout,
		logger:      logger,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
