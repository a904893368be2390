package main

import (
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/usenocturne/avrcpd/avrcp"
	"github.com/usenocturne/avrcpd/bridge"
	"github.com/usenocturne/avrcpd/config"
	"github.com/usenocturne/avrcpd/server"
	"github.com/usenocturne/avrcpd/store"
	"github.com/usenocturne/avrcpd/utils"
)

var version = "dev"

const bridgeRetryDelay = 5 * time.Second

func main() {
	app := &cli.App{
		Name:    "avrcpd",
		Usage:   "AVRCP target-role session daemon",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Value:   "/etc/avrcpd/avrcpd.yaml",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP listen address (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "log file path (overrides config)",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if addr := c.String("listen"); addr != "" {
		cfg.ListenAddr = addr
	}
	if lf := c.String("log"); lf != "" {
		cfg.LogFile = lf
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
			log.Printf("Warning: Could not create log directory: %v", err)
		}
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Warning: Could not open log file: %v", err)
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, file))
			defer file.Close()
			log.Printf("Logging to %s", cfg.LogFile)
		}
	}

	log.Printf("Starting avrcpd %s", version)
	log.Printf("Configuration: listen=%s store=%s max_connections=%d",
		cfg.ListenAddr, cfg.StorePath, cfg.Session.MaxConnections)

	st, err := store.New(cfg.StorePath)
	if err != nil {
		return err
	}

	// D-Bus may come up after us on boot; keep trying.
	var br *bridge.Bridge
	for {
		br, err = bridge.New()
		if err == nil {
			break
		}
		log.Printf("Bridge init failed: %v, retrying in %s", err, bridgeRetryDelay)
		time.Sleep(bridgeRetryDelay)
	}

	wsHub := utils.NewWebSocketHub()
	events := utils.NewWebSocketBroadcaster(wsHub)

	mgr := avrcp.NewManager(avrcp.Config{
		MaxConnections:   cfg.Session.MaxConnections,
		QueueDepth:       cfg.Session.QueueDepth,
		VolumeStep:       cfg.Session.VolumeStep,
		AbsVolThreshold:  cfg.Session.AbsVolThreshold,
		PosUpdateFloorMs: cfg.Session.PosUpdateFloorMs,
	}, br, br, br, st, events)
	mgr.Start()

	if err := br.Start(mgr); err != nil {
		mgr.Stop()
		return err
	}

	httpServer := server.NewServer(mgr, wsHub, version)
	go func() {
		if err := httpServer.Start(cfg.ListenAddr); err != nil {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down", sig)

	if err := httpServer.Stop(); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}
	br.Stop()
	mgr.Stop()
	log.Println("avrcpd stopped")
	return nil
}
