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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.GatewayStore.
var _ store.GatewayStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Per-xpub derivation counter. The version column drives optimistic
	-- locking for index reservation.
	CREATE TABLE IF NOT EXISTS key_indexes (
		xpub TEXT PRIMARY KEY,
		next_index INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Derived receive addresses. UNIQUE(xpub, derivation_index) backstops
	-- the counter: a duplicate reservation can never slip through.
	CREATE TABLE IF NOT EXISTS addresses (
		id TEXT PRIMARY KEY,
		gateway_id TEXT NOT NULL,
		xpub TEXT NOT NULL,
		derivation_index INTEGER NOT NULL,
		address TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'available',
		order_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(xpub, derivation_index)
	);

	CREATE INDEX IF NOT EXISTS idx_addresses_gateway_status ON addresses(gateway_id, status);
	CREATE INDEX IF NOT EXISTS idx_addresses_order_id ON addresses(order_id);

	-- Order payment state. Mutated only by the reconciliation step.
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		gateway_id TEXT NOT NULL,
		address TEXT NOT NULL,
		expected_amount INTEGER NOT NULL,
		fiat_total TEXT NOT NULL,
		fiat_currency TEXT NOT NULL,
		exchange_rate TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unpaid',
		confirmed_balance INTEGER NOT NULL DEFAULT 0,
		unconfirmed_balance INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_gateway ON orders(gateway_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
