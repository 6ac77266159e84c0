/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/log"
	"github.com/Comcast/proxygate/internal/metrics"
	"github.com/Comcast/proxygate/internal/reload"
	"github.com/Comcast/proxygate/internal/server"
	"github.com/Comcast/proxygate/internal/tracing"
	"github.com/Comcast/proxygate/internal/webhook"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// PROXYD_LOG_LEVEL and PROXYD_LISTEN_ADDR are already applied inside
// config.Load (internal/config/loader.go) as the "env" tier of
// file < env < flags. serveViper only owns the top tier: an explicit
// --listen-addr/--log-level flag outranks everything config.Load saw.

var (
	serveConfigPath string
	serveStrict     bool
	serveViper      *viper.Viper
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to the TOML configuration file")
	serveCmd.Flags().BoolVar(&serveStrict, "strict", false, "reject unrecognized configuration keys")
	serveCmd.Flags().String("listen-addr", "", "override basic.listen_address")
	serveCmd.Flags().String("log-level", "", "override basic.log_level")
	_ = serveCmd.MarkFlagRequired("config")

	serveViper = viper.New()
	_ = serveViper.BindPFlag("listen-addr", serveCmd.Flags().Lookup("listen-addr"))
	_ = serveViper.BindPFlag("log-level", serveCmd.Flags().Lookup("log-level"))
}

func runServe(cmd *cobra.Command, args []string) error {
	snap, err := config.Load(serveConfigPath, serveStrict)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if addr := serveViper.GetString("listen-addr"); addr != "" {
		snap.Basic.ListenAddress = addr
	}
	if level := serveViper.GetString("log-level"); level != "" {
		snap.Basic.LogLevel = level
	}

	if snap.Basic.LogFile != "" {
		f, err := os.OpenFile(snap.Basic.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		log.SetOutput(f)
	}
	log.SetLevel(snap.Basic.LogLevel)

	tracing.SetVersion(buildVersion)
	flushTracing, err := tracing.Init(tracing.Stdout, "")
	if err != nil {
		log.Warn("tracing init failed, proceeding untraced", log.Pairs{"error": err.Error()})
	} else {
		defer flushTracing()
	}

	mgr, err := server.NewManager(snap)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}
	mgr.Start()
	log.Info("proxyd serving", log.Pairs{"servers": len(snap.Servers)})

	wh := webhook.New(snap.Basic.WebhookURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	restart := func() {
		log.Warn("restart-eligible config diff detected, exiting for supervisor restart", nil)
		cancel()
	}

	period := time.Duration(snap.Basic.ReloadIntervalSecs) * time.Second
	if period <= 0 {
		period = time.Minute
	}
	controller := reload.New(serveConfigPath, serveStrict, snap, period, mgr, wh, restart)
	go controller.Run(ctx)

	metricsAddr := fmt.Sprintf("%s:%d", snap.Basic.MetricsListenAddress, snap.Basic.MetricsListenPort)
	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	go func() {
		log.Info("metrics listening", log.Pairs{"addr": metricsAddr})
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server exited", log.Pairs{"error": err.Error()})
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutdown signal received", nil)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mgr.Stop(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	return nil
}
