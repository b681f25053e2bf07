package server

import (
	"fmt"
	"net/http"
	"time"

	"homepulse/internal/config"
	"homepulse/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	devices     port.DeviceStore
	usage       port.UsageStore
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	devices port.DeviceStore, usage port.UsageStore) *http.Server {
	NewServer := &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		devices:     devices,
		usage:       usage,
		httpLog:     cfg.HttpLog,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
