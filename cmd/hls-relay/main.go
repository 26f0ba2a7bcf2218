// Package main is the entry point for hls-relay.
package main

import (
	"log"
	"os"

	"hls-relay/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Printf("server error: %v", err)
		application.Shutdown()
		os.Exit(1)
	}
	application.Shutdown()
}
