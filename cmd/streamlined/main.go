// Copyright 2026 Matt Layher
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command streamlined is a periodic HTTP prober which merges probes with
// nearby deadlines into single wakeups.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/mdlayher/sdnotify"
	"github.com/mdlayher/streamline/internal/build"
	"github.com/mdlayher/streamline/internal/config"
	"github.com/mdlayher/streamline/internal/streamlined"
)

const cfgFile = "streamlined.toml"

func main() {
	var (
		cfgFlag  = flag.String("c", cfgFile, "path to configuration file")
		initFlag = flag.Bool("init", false,
			fmt.Sprintf("write out a default configuration file to %q and exit", cfgFile))
	)
	flag.Parse()

	ll := log.New(os.Stderr, "", log.LstdFlags)

	if *initFlag {
		if err := os.WriteFile(cfgFile, []byte(config.Default), 0o644); err != nil {
			ll.Fatalf("failed to write default configuration: %v", err)
		}

		return
	}

	f, err := os.Open(*cfgFlag)
	if err != nil {
		ll.Fatalf("failed to open configuration file: %v", err)
	}

	cfg, err := config.Parse(f)
	if err != nil {
		ll.Fatalf("failed to parse %q: %v", f.Name(), err)
	}
	_ = f.Close()

	ll.Printf("%s starting with configuration file %q", build.Banner(), f.Name())

	// Notifier methods are no-ops when not running under systemd.
	n, _ := sdnotify.New()

	// Use a context to handle cancelation on signal.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	defer wg.Wait()

	go func() {
		defer wg.Done()

		// Wait for signals (configurable per-platform) and then cancel the
		// context to indicate that the process should shut down.
		sigC := make(chan os.Signal, 1)
		signal.Notify(sigC, signals()...)

		s := <-sigC
		ll.Printf("received %s, shutting down", s)
		_ = n.Notify(sdnotify.Statusf("received %s, shutting down", s), sdnotify.Stopping)
		cancel()
	}()

	srv := streamlined.NewServer(*cfg, ll)

	// Indicate readiness to systemd once the server is up. The goroutine
	// also unblocks when Run returns and closes the ready channel.
	go func() {
		<-srv.Ready()
		_ = n.Notify(
			sdnotify.Statusf("running, %d routine(s) registered", len(cfg.Routines)),
			sdnotify.Ready,
		)
	}()

	if err := srv.Run(ctx); err != nil {
		ll.Fatalf("failed to run streamlined: %v", err)
	}

	ll.Println("exiting")
}
