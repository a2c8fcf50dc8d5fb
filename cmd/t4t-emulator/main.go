// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command t4t-emulator serves a Type 4 Tag on a PN532 in target mode:
// any NFC reader that taps it sees a tag deep-linking to the
// configured identifier.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	t4t "github.com/ZaparooProject/go-t4t"
	"github.com/ZaparooProject/go-t4t/transport/uart"
)

type config struct {
	Device     string `toml:"device"`
	Identifier string `toml:"identifier"`
	Scheme     string `toml:"scheme"`
}

var (
	flagConfig     string
	flagDevice     string
	flagIdentifier string
	flagScheme     string
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "TOML config file (flags override it)")
	flag.StringVar(&flagDevice, "device", "", "Serial port of the PN532")
	flag.StringVar(&flagIdentifier, "id", "", "Identifier to embed in the emulated tag")
	flag.StringVar(&flagScheme, "scheme", "", "Deep-link scheme to embed")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func loadConfig() (*config, error) {
	cfg := &config{}
	if flagConfig != "" {
		if _, err := toml.DecodeFile(flagConfig, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", flagConfig, err)
		}
	}
	if flagDevice != "" {
		cfg.Device = flagDevice
	}
	if flagIdentifier != "" {
		cfg.Identifier = flagIdentifier
	}
	if flagScheme != "" {
		cfg.Scheme = flagScheme
	}

	if cfg.Device == "" {
		return nil, errors.New("no serial port given (-device)")
	}
	if cfg.Identifier == "" {
		return nil, errors.New("no identifier given (-id)")
	}
	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tr, err := uart.New(cfg.Device)
	if err != nil {
		return err
	}
	defer func() {
		if err := tr.Close(); err != nil {
			log.Warn().Err(err).Msg("transport close failed")
		}
	}()

	emu := t4t.NewEmulator(
		t4t.StaticIdentity(cfg.Identifier),
		t4t.EmulatorConfig{Scheme: cfg.Scheme},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("identifier", cfg.Identifier).Msg("serving emulated tag, ^C to stop")
	if err := tr.Serve(ctx, emu); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(); err != nil {
		log.Error().Err(err).Msg("emulator failed")
		os.Exit(1)
	}
}
