package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carefleet/carefleet-client/credentials/bboltstore"
	"github.com/carefleet/carefleet-client/gateway"
	"github.com/carefleet/carefleet-client/internal/config"
	"github.com/carefleet/carefleet-client/realtime"
	"github.com/carefleet/carefleet-client/session"
	"github.com/carefleet/carefleet-client/users"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running client")
	}
	log.Info().Msg("Client stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	configureLogging(c)
	displayAppname(c.GetAppName())

	store, err := bboltstore.Open(c.GetCredentialsPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manager, err := session.NewManager(store, gateway.New(c))
	if err != nil {
		return err
	}

	channel := realtime.NewChannel(c, realtime.WebsocketDialer{})
	channel.Observe(func(ev realtime.Event) {
		if ev.Err != nil {
			// Connectivity-degraded: surfaced, session stays intact
			log.Warn().Err(ev.Err).Msg("Realtime channel degraded")
			return
		}
		log.Info().Str("state", string(ev.State)).Msg("Realtime channel state changed")
	})

	ctx := context.Background()

	// The channel follows the session: a fresh credential (re)connects it,
	// logout tears it down. The subscription registry survives either way.
	manager.OnChange(func(state session.State, user *users.User) {
		switch state {
		case session.StateAuthenticated:
			log.Info().Str("role", string(user.Role)).Msg("Session authenticated")
			channel.Connect(ctx, manager.AccessToken())
		case session.StateUnauthenticated:
			channel.Disconnect()
		}
	})

	if snapshot, err := manager.BootSnapshot(); err == nil && snapshot.IsAuthenticated {
		log.Info().Msg("Boot snapshot present, reconciling against stored claims")
	}

	if err := manager.Initialize(ctx); err != nil {
		return err
	}
	log.Info().Str("state", string(manager.State())).Msg("Session initialized")

	waitForStopSignal()
	channel.Disconnect()
	return nil
}

func configureLogging(c config.Config) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
