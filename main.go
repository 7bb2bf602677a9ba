package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"aprsbridge/aprs"
	"aprsbridge/broadcast"
	"aprsbridge/config"
	"aprsbridge/device/aprsis"
	"aprsbridge/device/kiss"
	"aprsbridge/ingest"
	"aprsbridge/packet"
	"aprsbridge/ui/console"
	"aprsbridge/ui/monitor"
	"aprsbridge/web"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.toml", "Configuration file (.toml or .yaml).")
	udpAddr := pflag.String("udp", "", "UDP address for incoming AX.25 frames, e.g. 0.0.0.0:9999.")
	webAddr := pflag.String("web", "", "HTTP/websocket listen address, e.g. 0.0.0.0:8080.")
	staticDir := pflag.String("static", "", "Directory with the browser map files.")
	consoleMode := pflag.String("console", "", "Console output: table, monitor or off.")
	debug := pflag.BoolP("debug", "d", false, "Log dropped frames and other debug detail.")
	pflag.Parse()

	conf, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("failed to load config", "path", *configPath, "err", err)
	}
	if *udpAddr != "" {
		conf.Ingest.UDPAddr = *udpAddr
	}
	if *webAddr != "" {
		conf.Web.Addr = *webAddr
	}
	if *staticDir != "" {
		conf.Web.StaticDir = *staticDir
	}
	if *consoleMode != "" {
		conf.Console.Mode = *consoleMode
	}
	if *debug {
		conf.Log.Level = "debug"
	}
	if err := conf.Validate(); err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	logger, screen, closeLog, err := newLogger(conf, os.Stderr)
	if err != nil {
		log.Fatal("failed to set up logging", "err", err)
	}
	defer closeLog()

	if err := run(conf, logger, screen); err != nil {
		logger.Error("exiting", "err", err)
		closeLog()
		os.Exit(1)
	}
}

// newLogger logs to log.file when set, otherwise to stderr. In that case
// the returned screenWriter holds output back while the monitor owns the
// terminal.
func newLogger(conf config.Config, stderr io.Writer) (*log.Logger, *screenWriter, func(), error) {
	var (
		out     io.Writer
		screen  *screenWriter
		closeFn = func() {}
	)

	if conf.Log.File != "" {
		f, err := os.OpenFile(conf.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	} else {
		screen = newScreenWriter(stderr)
		out = screen
	}

	level, err := log.ParseLevel(conf.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	log.SetDefault(logger)
	return logger, screen, closeFn, nil
}

func stationHome(conf config.Config, logger *log.Logger) *packet.Position {
	if conf.Station.GridSquare == "" {
		return nil
	}
	pos, err := aprs.GridSquareToPosition(conf.Station.GridSquare)
	if err != nil {
		logger.Warn("could not parse station gridsquare", "grid", conf.Station.GridSquare, "err", err)
		return nil
	}
	return &pos
}

func run(conf config.Config, logger *log.Logger, screen *screenWriter) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := broadcast.New(conf.Broadcast.SendTimeout, logger)
	defer hub.Close()

	home := stationHome(conf, logger)

	var (
		opts []ingest.Option
		mon  *monitor.Program
	)
	switch conf.Console.Mode {
	case config.ConsoleTable:
		printer := console.New(os.Stdout, home)
		opts = append(opts, ingest.WithObserver(printer.Print))
	case config.ConsoleMonitor:
		mon = monitor.NewProgram(ctx, monitor.Options{
			Station:     conf.Station.Callsign,
			Home:        home,
			ShapeFile:   conf.Map.ShapeFile,
			DefaultZoom: conf.Map.DefaultZoom,
			Clients:     hub,
		})
		opts = append(opts, ingest.WithObserver(mon.Observe))
	}

	var uplink *aprsis.Uplink
	if conf.IGate.Enabled {
		var err error
		uplink, err = aprsis.NewUplink(conf, logger)
		if err != nil {
			return fmt.Errorf("igate: %w", err)
		}
		opts = append(opts, ingest.WithObserver(uplink.Observe))
	}

	pipeline := ingest.NewPipeline(hub, logger, opts...)

	listener, err := ingest.Listen(conf.Ingest.UDPAddr, ingest.Handle(pipeline), logger)
	if err != nil {
		return err
	}
	defer listener.Close()

	var tnc *kiss.Client
	if conf.Interface.Type != "" {
		tnc, err = kiss.Connect(conf.Interface, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to interface: %w", err)
		}
		defer tnc.Close()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return pipeline.Run(ctx) })
	g.Go(func() error { return listener.Run(ctx) })
	g.Go(func() error {
		return web.NewServer(conf.Web, hub, logger).ListenAndServe(ctx)
	})

	if tnc != nil {
		g.Go(func() error {
			// Losing the TNC leaves the UDP path running.
			if err := tnc.Run(ctx, ingest.Handle(pipeline)); err != nil {
				logger.Error("KISS interface stopped", "err", err)
			}
			return nil
		})
	}

	if uplink != nil {
		g.Go(func() error { return uplink.Run(ctx) })
	}

	if conf.Web.Announce {
		g.Go(func() error {
			if err := web.Announce(ctx, conf.Web.ServiceName, conf.Web.Addr, logger); err != nil {
				logger.Warn("service announcement stopped", "err", err)
			}
			return nil
		})
	}

	if mon != nil {
		g.Go(func() error {
			if screen != nil {
				screen.Pause()
				defer screen.Resume()
			}
			err := mon.Run()
			stop()
			return err
		})
	}

	logger.Info("server running, press Ctrl+C to stop")
	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
