package main

import (
	"os"

	"go.uber.org/zap"

	articledrafter "github.com/temirov/article-drafter/cmd/article-drafter"
)

func main() {
	logger := zap.Must(zap.NewProduction())

	executionErr := articledrafter.Execute()
	if executionErr != nil {
		logger.Error("command execution failed", zap.Error(executionErr))
		_ = logger.Sync()
		os.Exit(1)
	}

	_ = logger.Sync()
}
