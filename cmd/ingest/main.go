package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/markdave123-py/docrag/internal/api/lambdafn"
	"github.com/markdave123-py/docrag/internal/app"
	"github.com/markdave123-py/docrag/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err == nil {
		err = cfg.ValidateIngest()
	}
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(cfg))

	application, err := app.NewApp(context.Background(), cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	lambda.Start(lambdafn.NewIngestHandler(application.Router).Handle)
}
