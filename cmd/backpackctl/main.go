// go-elrsbackpack
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-elrsbackpack.
//
// go-elrsbackpack is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-elrsbackpack is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-elrsbackpack; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	backpack "github.com/ZaparooProject/go-elrsbackpack"
	"github.com/ZaparooProject/go-elrsbackpack/config"
	"github.com/ZaparooProject/go-elrsbackpack/osd"
	"github.com/ZaparooProject/go-elrsbackpack/power"
	"github.com/ZaparooProject/go-elrsbackpack/race"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if run() != 0 {
		os.Exit(1)
	}
}

// lateControl forwards to a RaceControl assigned after the link is built.
// It must be set before the link starts.
type lateControl struct {
	backpack.RaceControl
}

func run() int {
	configPath := flag.String("config", "", "YAML configuration file")
	portFlag := flag.String("port", "", "Serial port of the backpack (default: probe every port)")
	lapLimit := flag.Int("laps", 3, "Laps that finish a pilot's race, 0 for unlimited")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to load configuration")
			return 1
		}
		cfg = loaded
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	remote := &lateControl{}
	linkOpts := cfg.LinkOptions()
	if *portFlag != "" {
		linkOpts = append(linkOpts, backpack.WithPorts(*portFlag))
	}
	linkOpts = append(linkOpts, backpack.WithInboundHandler(backpack.NewInboundMonitor(remote)))

	link, err := backpack.NewLink(linkOpts...)
	if err != nil {
		log.Error().Err(err).Msg("invalid link configuration")
		return 1
	}

	roster := cfg.Roster()
	composer := osd.NewComposer(link, osd.DefaultRows())
	controllerOpts := []race.ControllerOption{
		race.WithOptionLookup(&cfg.Options),
		race.WithPacer(link),
	}
	if cfg.PowerEnabled() {
		cycler, err := power.New(cfg.Power.Pin)
		if err != nil {
			log.Warn().Err(err).Str("pin", cfg.Power.Pin).Msg("backpack power control unavailable")
		} else {
			controllerOpts = append(controllerOpts, race.WithPowerCycler(cycler))
		}
	}
	controller := race.NewController(composer, roster, controllerOpts...)
	host := newSimHost(controller, roster, *lapLimit)
	remote.RaceControl = controller.RemoteControl(host)

	if err := controller.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start controller")
		return 1
	}
	defer controller.Stop()

	if err := link.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start backpack link")
		return 1
	}
	defer func() {
		if err := link.Stop(); err != nil {
			log.Debug().Err(err).Msg("failed to stop backpack link")
		}
	}()

	if ids := roster.HeatIDs(); len(ids) > 0 {
		if err := host.SetHeat(ids[0]); err != nil {
			log.Warn().Err(err).Msg("failed to select first heat")
		}
	}

	shell := newShell(&console{
		ctx:        ctx,
		link:       link,
		controller: controller,
		host:       host,
		roster:     roster,
		options:    &cfg.Options,
	})

	if args := flag.Args(); len(args) > 0 {
		if !waitConnected(ctx, link) {
			log.Error().Msg("no backpack connected")
			return 1
		}
		if err := shell.Process(args...); err != nil {
			log.Error().Err(err).Msg("command failed")
			return 1
		}
		controller.Wait()

		flushCtx, flushCancel := context.WithTimeout(ctx, flushTimeout)
		defer flushCancel()
		if err := link.Flush(flushCtx); err != nil {
			log.Error().Err(err).Msg("queued messages were not written")
			return 1
		}
		return 0
	}

	go func() {
		<-ctx.Done()
		shell.Close()
	}()
	shell.Run()
	return 0
}

// flushTimeout bounds how long one-shot mode waits for the queue to drain.
const flushTimeout = 10 * time.Second

// waitConnected blocks until the link leaves the searching state and reports
// whether it connected.
func waitConnected(ctx context.Context, link *backpack.Link) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch link.State() {
		case backpack.StateConnected:
			return true
		case backpack.StateDisconnected:
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-link.Done():
		case <-ticker.C:
		}
	}
}
