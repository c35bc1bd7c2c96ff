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

package common

import (
	"context"
	"log"
	"strings"

	"bitcoin-gateway-go/internal/blockchain"
	"bitcoin-gateway-go/internal/config"
	"bitcoin-gateway-go/internal/database"
	"bitcoin-gateway-go/internal/gateway"
	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/rates"
	"bitcoin-gateway-go/internal/upstream"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists.
// Environment variables can be set via other means (shell export, docker, etc.)
func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

type Services struct {
	DbService *database.Service
	Gateway   *gateway.Service
	Gateways  []config.GatewayConfig
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// Syncing a production logger to a terminal fails with EINVAL/ENOTTY noise.
func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "inappropriate ioctl for device") ||
		strings.Contains(msg, "bad file descriptor")
}

// InitializeServices wires the store, the two upstream API clients and the
// reconciliation service from configuration.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	gatewayConfigs, err := config.LoadGatewayConfigs(cfg.Monitor.GatewaysFile)
	if err != nil {
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	httpClient, err := upstream.NewHttpClient(cfg.Upstream.RequestTimeout)
	if err != nil {
		dbService.Close()
		return nil, err
	}
	fetcher := upstream.NewFetcher(httpClient)

	chainNetwork := "BTC"
	for _, gc := range gatewayConfigs {
		if gc.Network == "testnet3" || gc.Network == "testnet" {
			chainNetwork = "BTCTEST"
		}
	}

	gatewayService, err := gateway.NewService(gateway.ServiceConfig{
		Store:            dbService,
		Chain:            blockchain.NewSoChain(fetcher, cfg.Upstream.SoChainBaseUrl, chainNetwork),
		Rates:            rates.NewBitfinex(fetcher, cfg.Upstream.BitfinexBaseUrl),
		Gateways:         gatewayConfigs,
		MinConfirmations: cfg.Monitor.MinConfirmations,
	})
	if err != nil {
		dbService.Close()
		return nil, err
	}

	zap.L().Info("Services initialized",
		zap.Int("gateways", len(gatewayConfigs)),
		zap.String("chain_network", chainNetwork))

	return &Services{
		DbService: dbService,
		Gateway:   gatewayService,
		Gateways:  gatewayConfigs,
	}, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}
