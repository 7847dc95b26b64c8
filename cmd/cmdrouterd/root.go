// Copyright (c) 2024 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/cmdrouterfx"
	"go.uber.org/cmdrouter/config"
	"go.uber.org/cmdrouter/dispatch"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type serveFlags struct {
	configFile string
	service    string
	listen     string
	logLevel   string
	echo       []string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cmdrouterd",
		Short:        "Routes commands between the members of a cluster",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newSendCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Join the cluster and serve commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			app := fx.New(
				fx.Supply(cfg),
				fx.Supply(logger),
				fx.WithLogger(func() fxevent.Logger {
					return &fxevent.ZapLogger{Logger: logger.Named("fx")}
				}),
				cmdrouterfx.Module,
				fx.Invoke(subscribeEcho(f.echo, logger)),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configFile, "config", "", "path of the YAML configuration")
	flags.StringVar(&f.service, "service", "", "service id to register as")
	flags.StringVar(&f.listen, "listen", "", "address to serve commands on")
	flags.StringVar(&f.logLevel, "log-level", "", "minimum level of logged messages")
	flags.StringSliceVar(&f.echo, "echo", nil, "command names answered by echoing their payload")
	return cmd
}

// load reads the configuration file, if any, and applies the flags that
// were set on top of it.
func (f serveFlags) load(flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		var err error
		if cfg, err = config.LoadFile(f.configFile); err != nil {
			return cfg, err
		}
	}

	if flags.Changed("service") {
		cfg.Service = f.service
	}
	if flags.Changed("listen") {
		cfg.Listen = f.listen
	}
	if flags.Changed("log-level") {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(f.logLevel)); err != nil {
			return cfg, err
		}
		cfg.Logging = cfg.Logging.WithLevel(lvl)
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Logging) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.ZapLevel())
	return zc.Build()
}

func subscribeEcho(names []string, logger *zap.Logger) func(*dispatch.Bus) {
	return func(bus *dispatch.Bus) {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			bus.Subscribe(name, command.HandlerFunc(func(_ context.Context, cmd command.Command) ([]byte, error) {
				logger.Debug("Echoing command", zap.String("name", cmd.Name), zap.String("id", cmd.ID))
				return cmd.Payload, nil
			}))
		}
	}
}
