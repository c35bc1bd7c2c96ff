/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitcoin-gateway-go/internal/common"
	"bitcoin-gateway-go/internal/config"
	"bitcoin-gateway-go/internal/listener"

	"go.uber.org/zap"
)

func main() {
	gatewaysFile := flag.String("gateways", "", "Optional path to gateways.yaml (default: GATEWAYS_FILE env or gateways.yaml)")
	interval := flag.Duration("interval", 0, "Optional polling interval override (e.g. 90s)")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	if *gatewaysFile != "" {
		cfg.Monitor.GatewaysFile = *gatewaysFile
	}
	if *interval > 0 {
		cfg.Monitor.PollingInterval = *interval
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting Bitcoin gateway order monitor",
		zap.String("gateways_file", cfg.Monitor.GatewaysFile),
		zap.Duration("polling_interval", cfg.Monitor.PollingInterval))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	monitor := listener.NewOrderMonitor(listener.OrderMonitorConfig{
		Reconciler:       services.Gateway,
		Store:            services.DbService,
		PollingInterval:  cfg.Monitor.PollingInterval,
		RateLimitBackoff: cfg.Monitor.RateLimitBackoff,
	})

	if err := monitor.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start order monitor", zap.Error(err))
	}

	zap.L().Info("Order monitor running")
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping monitor...")

	done := make(chan struct{})
	go func() {
		monitor.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Monitor stopped gracefully")
	case <-time.After(30 * time.Second):
		zap.L().Warn("Forced shutdown after timeout")
	}
}
