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

// Command t4t-reader reads a Type 4 Tag and prints the deep-link
// identifier it carries.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	t4t "github.com/ZaparooProject/go-t4t"
	"github.com/ZaparooProject/go-t4t/transport/pcsc"
	"github.com/ZaparooProject/go-t4t/transport/uart"
)

type config struct {
	Transport string `toml:"transport"`
	Device    string `toml:"device"`
	Scheme    string `toml:"scheme"`
	Clipboard bool   `toml:"clipboard"`
}

var (
	flagConfig    string
	flagTransport string
	flagDevice    string
	flagScheme    string
	flagClipboard bool
	flagDebug     bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "TOML config file (flags override it)")
	flag.StringVar(&flagTransport, "transport", "", "Transport: pcsc or uart (default pcsc)")
	flag.StringVar(&flagDevice, "device", "", "PC/SC reader name substring, or serial port path")
	flag.StringVar(&flagScheme, "scheme", "", "Deep-link scheme to extract")
	flag.BoolVar(&flagClipboard, "clip", false, "Copy the identifier to the clipboard")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func loadConfig() (*config, error) {
	cfg := &config{Transport: "pcsc"}
	if flagConfig != "" {
		if _, err := toml.DecodeFile(flagConfig, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", flagConfig, err)
		}
	}
	if flagTransport != "" {
		cfg.Transport = flagTransport
	}
	if flagDevice != "" {
		cfg.Device = flagDevice
	}
	if flagScheme != "" {
		cfg.Scheme = flagScheme
	}
	if flagClipboard {
		cfg.Clipboard = true
	}
	return cfg, nil
}

func openTransport(ctx context.Context, cfg *config) (t4t.Transceiver, error) {
	switch cfg.Transport {
	case "pcsc":
		return pcsc.Open(cfg.Device)
	case "uart":
		tr, err := uart.New(cfg.Device)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("waiting for a tag...")
		if _, err := tr.WaitForTag(ctx); err != nil {
			_ = tr.Close()
			return nil, err
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := openTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := tr.Close(); err != nil {
			log.Warn().Err(err).Msg("transport close failed")
		}
	}()

	reader := t4t.NewReader(t4t.ReaderConfig{Scheme: cfg.Scheme})

	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	id, err := reader.ReadIdentifier(readCtx, tr)
	switch {
	case err == nil:
	case errors.Is(err, t4t.ErrNotOurTag):
		return errors.New("tag read, but it carries no identifier for us")
	case t4t.IsNotFound(err):
		return fmt.Errorf("no contact found on tag: %w", err)
	case t4t.IsTransportFailure(err):
		return fmt.Errorf("could not read tag: %w", err)
	default:
		return err
	}

	fmt.Println(id)

	if cfg.Clipboard {
		if err := clipboard.WriteAll(id); err != nil {
			log.Warn().Err(err).Msg("clipboard copy failed")
		} else {
			log.Info().Msg("identifier copied to clipboard")
		}
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
		log.Error().Err(err).Msg("read failed")
		os.Exit(1)
	}
}
