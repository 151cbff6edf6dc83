// Copyright 2024-2025
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

package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/navledger/navledger/common"
	"github.com/navledger/navledger/database"
)

type realizedGain struct {
	TransactionID int64     `json:"transaction_id"`
	LotID         int64     `json:"lot_id"`
	Instrument    string    `json:"instrument"`
	ContractKey   string    `json:"contract_key"`
	CloseDate     time.Time `json:"close_date"`
	Quantity      float64   `json:"quantity"`
	AllocatedCost float64   `json:"allocated_cost"`
	Proceeds      float64   `json:"proceeds"`
	Gain          float64   `json:"gain"`
}

var gainTables = map[string]string{
	"equity": "equity_realized_gains",
	"option": "option_realized_gains",
}

// ListRealizedGains returns the realized gain records from the last run for
// the engine named by the :engine path parameter (equity or option).
func ListRealizedGains(c *fiber.Ctx) error {
	engine := c.Params("engine")
	table, ok := gainTables[engine]
	if !ok {
		return fiber.ErrBadRequest
	}

	cacheKey := "gains:" + engine
	if cached, err := common.CacheGet(cacheKey); err == nil && len(cached) > 0 {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(cached)
	}

	ctx := context.Background()
	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return fiber.ErrInternalServerError
	}

	sql := `SELECT transaction_id, lot_id, instrument, contract_key, close_date,
		quantity, allocated_cost, proceeds, gain FROM ` + table + `
		ORDER BY close_date, transaction_id, lot_id`
	rows, err := trx.Query(ctx, sql)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		log.Warn().Err(err).Str("Table", table).Msg("realized gain query failed")
		return fiber.ErrNotFound
	}

	gains := []realizedGain{}
	for rows.Next() {
		gain := realizedGain{}
		err := rows.Scan(&gain.TransactionID, &gain.LotID, &gain.Instrument,
			&gain.ContractKey, &gain.CloseDate, &gain.Quantity,
			&gain.AllocatedCost, &gain.Proceeds, &gain.Gain)
		if err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Warn().Err(err).Msg("realized gain scan failed")
			return fiber.ErrInternalServerError
		}
		gains = append(gains, gain)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
	}

	return sendCached(c, cacheKey, gains)
}
