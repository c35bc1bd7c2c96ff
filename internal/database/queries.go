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

const (
	// Key index queries
	queryGetKeyIndex = `
		SELECT next_index, version
		FROM key_indexes
		WHERE xpub = ?`

	queryInsertKeyIndex = `
		INSERT OR IGNORE INTO key_indexes (xpub, next_index, version) VALUES (?, 0, 1)`

	queryAdvanceKeyIndex = `
		UPDATE key_indexes
		SET next_index = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE xpub = ? AND version = ?`

	// Address queries
	queryInsertAddress = `
		INSERT INTO addresses (id, gateway_id, xpub, derivation_index, address, status)
		VALUES (?, ?, ?, ?, ?, 'available')
		RETURNING id, gateway_id, xpub, derivation_index, address, status, order_id, created_at`

	queryAssignLowestAvailable = `
		UPDATE addresses
		SET status = 'assigned', order_id = ?
		WHERE id = (
			SELECT id FROM addresses
			WHERE gateway_id = ? AND status = 'available'
			ORDER BY derivation_index
			LIMIT 1
		)
		RETURNING id, gateway_id, xpub, derivation_index, address, status, order_id, created_at`

	queryGetAddressByOrder = `
		SELECT id, gateway_id, xpub, derivation_index, address, status, order_id, created_at
		FROM addresses
		WHERE order_id = ?`

	queryReleaseAddress = `
		UPDATE addresses
		SET status = 'available', order_id = NULL
		WHERE address = ?`

	queryMarkAddressUsed = `
		UPDATE addresses
		SET status = 'used'
		WHERE address = ?`

	queryCountAvailable = `
		SELECT COUNT(*)
		FROM addresses
		WHERE gateway_id = ? AND status = 'available'`

	// Order queries
	queryInsertOrder = `
		INSERT INTO orders (
			order_id, gateway_id, address, expected_amount, fiat_total, fiat_currency,
			exchange_rate, status, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 'unpaid', ?)
		RETURNING order_id, gateway_id, address, expected_amount, fiat_total, fiat_currency,
		          exchange_rate, status, confirmed_balance, unconfirmed_balance,
		          created_at, updated_at, expires_at`

	queryCheckOrderExists = `
		SELECT order_id FROM orders WHERE order_id = ? LIMIT 1`

	queryGetOrder = `
		SELECT order_id, gateway_id, address, expected_amount, fiat_total, fiat_currency,
		       exchange_rate, status, confirmed_balance, unconfirmed_balance,
		       created_at, updated_at, expires_at
		FROM orders
		WHERE order_id = ?`

	queryUpdateOrderStatus = `
		UPDATE orders
		SET status = ?, confirmed_balance = ?, unconfirmed_balance = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ?`

	queryListOpenOrders = `
		SELECT order_id, gateway_id, address, expected_amount, fiat_total, fiat_currency,
		       exchange_rate, status, confirmed_balance, unconfirmed_balance,
		       created_at, updated_at, expires_at
		FROM orders
		WHERE status IN ('unpaid', 'partially_paid')
		ORDER BY created_at`
)
