package main

import (
	"os"

	"github.com/joho/godotenv"

	"clawdash/cmd"
	"clawdash/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	if err := cmd.Execute(); err != nil {
		log.WithComponent("main").WithError(err).Error("clawdash failed")
		os.Exit(1)
	}
}
