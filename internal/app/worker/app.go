package wapp

import (
	"context"
	"log/slog"
)

type app struct {
	di *dependencyInjector
}

func New(ctx context.Context) *app {
	return &app{di: newDI()}
}

func (a *app) Run(ctx context.Context) error {
	a.di.Logger()

	consumer := a.di.Consumer(ctx)
	defer a.di.Close()

	slog.Info("worker starting...")
	return consumer.Run(ctx)
}
