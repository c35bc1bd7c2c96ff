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

// Pre-generates a batch of receive addresses for a gateway so checkout never
// has to derive synchronously.
package main

import (
	"context"
	"flag"
	"fmt"

	"bitcoin-gateway-go/internal/common"
	"bitcoin-gateway-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	gatewayId := flag.String("gateway", "", "Gateway id from gateways.yaml (required)")
	count := flag.Int("count", 10, "Number of addresses to generate")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	if *gatewayId == "" {
		zap.L().Fatal("Missing required -gateway flag")
	}
	if *count <= 0 {
		zap.L().Fatal("Count must be positive", zap.Int("count", *count))
	}

	ctx := context.Background()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	addresses, err := services.Gateway.GenerateNewAddresses(ctx, *gatewayId, *count)
	if err != nil {
		zap.L().Fatal("Failed to generate addresses", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Generated %d addresses for gateway %s", len(addresses), *gatewayId), common.DefaultWidth)
	for i, addr := range addresses {
		fmt.Printf("%s%5d  %s\n", common.BoxPrefix(i == len(addresses)-1), addr.DerivationIndex, addr.Address)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
