package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mo-shahab/pong3d/server/clock"
	"github.com/mo-shahab/pong3d/server/config"
	"github.com/mo-shahab/pong3d/server/room"
	"github.com/mo-shahab/pong3d/server/session"
	"github.com/mo-shahab/pong3d/server/termview"
	"github.com/mo-shahab/pong3d/server/wsclient"
	"github.com/mo-shahab/pong3d/server/wsserver"
)

const usage = `usage: pong3d [flags] serve|solo|host|join CODE

  serve       run the room server
  solo        play against the computer
  host        open a room on the server and play green
  join CODE   join a room and play red

flags:
`

func main() {
	configPath := flag.String("config", "", "JSON config file (default config.json)")
	addr := flag.String("addr", "", "listen address for serve")
	server := flag.String("server", "", "room server websocket url")
	name := flag.String("name", "", "player name")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *server != "" {
		cfg.Server = *server
	}
	if *name != "" {
		cfg.Name = *name
	}
	slog.SetLogLoggerLevel(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := flag.Arg(0)
	switch mode {
	case "serve":
		err = serve(ctx, cfg)
	case "solo", "host":
		err = play(ctx, cfg, mode, "")
	case "join":
		if flag.NArg() < 2 {
			flag.Usage()
			os.Exit(2)
		}
		err = play(ctx, cfg, mode, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "pong3d:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Configuration) error {
	manager := room.NewManager(clock.Real{}, cfg.Rand())
	manager.HeartbeatTimeout = cfg.HeartbeatTimeout.Std()
	go manager.RunSweeper(ctx, room.HeartbeatInterval)

	wsh := wsserver.NewWebSocketHandler(manager)
	wsh.LobbyTimeout = cfg.LobbyTimeout.Std()
	defer wsh.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", wsh)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	slog.Info("server starting", slog.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func play(ctx context.Context, cfg config.Configuration, mode, code string) error {
	codec, err := cfg.WireCodec()
	if err != nil {
		return err
	}
	sync, err := cfg.Sync()
	if err != nil {
		return err
	}

	opts := session.Options{
		Codec:    codec,
		Sync:     sync,
		Clock:    clock.Real{},
		Rand:     cfg.Rand(),
		WinScore: cfg.WinScore,
		Smoothed: cfg.SmoothRemote,
	}

	if mode != "solo" {
		c, err := connect(ctx, cfg, mode, code)
		if err != nil {
			return err
		}
		defer c.Close()
		opts.Service = c
		opts.Code = c.code
		fmt.Printf("room %s, playing %s\n", c.code, c.Seat())
	}

	// the terminal view owns stdout from here on
	restore, err := redirectLogs(cfg)
	if err != nil {
		return err
	}
	defer restore()

	screen, err := termview.Open()
	if err != nil {
		return err
	}
	keys := termview.NewKeys(opts.Clock)
	opts.Input = keys
	opts.Renderer = screen

	s, err := session.New(opts)
	if err != nil {
		screen.Close()
		return err
	}

	keys.OnPause = func() { s.TogglePause() }

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	quit := screen.PollKeys(runCtx, keys)
	go func() {
		select {
		case <-quit:
			cancel()
		case <-runCtx.Done():
		}
	}()

	final := s.Run(runCtx)
	if final.Terminal() {
		// keep the last frame up until the player dismisses it
		select {
		case <-quit:
		case <-ctx.Done():
		}
	}

	closeErr := s.Close()
	screen.Close()

	v := s.View()
	fmt.Printf("green %d : %d red  (%s", v.Scores.Green, v.Scores.Red, v.State)
	if v.Reason != "" {
		fmt.Printf(": %s", v.Reason)
	}
	fmt.Println(")")
	return closeErr
}

type roomClient struct {
	*wsclient.Client
	code string
}

// connect dials the room server and creates or joins a room within the join timeout
func connect(ctx context.Context, cfg config.Configuration, mode, code string) (*roomClient, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.JoinTimeout.Std())
	defer cancel()

	c, err := wsclient.Dial(ctx, cfg.Server, cfg.Name)
	if err != nil {
		return nil, err
	}

	if mode == "host" {
		code, err = c.CreateRoom(ctx)
	} else {
		err = c.JoinRoom(ctx, code)
	}
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%s: %w", mode, err)
	}
	return &roomClient{Client: c, code: code}, nil
}

func redirectLogs(cfg config.Configuration) (func(), error) {
	prev := slog.Default()
	var w io.Writer = io.Discard
	var f *os.File
	if cfg.LogFile != "" {
		var err error
		f, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	return func() {
		slog.SetDefault(prev)
		if f != nil {
			f.Close()
		}
	}, nil
}
