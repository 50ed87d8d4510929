package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	app "github.com/homeworkai/backend/internal/app/api"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	a := app.New(ctx)
	if err := a.Run(ctx); err != nil {
		log.Fatalln("api:", err)
	}
}
