package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/notewire/notewire/internal/engine"
	"github.com/notewire/notewire/internal/peer"
	"github.com/notewire/notewire/internal/server"
	"github.com/notewire/notewire/transport"
)

func main() {
	configPath := flag.String("config", "", "path to notewired.toml")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "notewired: %v\n", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	rpc := transport.New(log, transport.WithRequestTimeout(cfg.RequestTimeout))
	defer rpc.Close("process shutdown")

	var sender engine.Sender
	if cfg.PeerURL != "" {
		sender = peer.NewClient(cfg.PeerURL, log)
	} else {
		log.Warn("no peer_url configured; responses to inbound requests will be dropped")
	}

	eng := engine.New(rpc, sender, log)
	registerMethods(eng, cfg, log)

	srv := server.New(server.Config{ListenAddr: cfg.ListenAddr, BasePath: cfg.BasePath}, rpc, log)
	if err := srv.Run(); err != nil {
		log.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
