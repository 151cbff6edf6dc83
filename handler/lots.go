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

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/navledger/navledger/common"
	"github.com/navledger/navledger/database"
)

type equityLot struct {
	ID            int64     `json:"id"`
	Instrument    string    `json:"instrument"`
	OpenDate      time.Time `json:"open_date"`
	TransactionID int64     `json:"transaction_id"`
	OpenQuantity  float64   `json:"open_quantity"`
	CostBasis     float64   `json:"cost_basis"`
	AvgPrice      float64   `json:"avg_price"`
}

type optionLot struct {
	ID            int64     `json:"id"`
	Instrument    string    `json:"instrument"`
	Expiration    time.Time `json:"expiration"`
	OptionType    string    `json:"option_type"`
	Strike        float64   `json:"strike"`
	OpenDate      time.Time `json:"open_date"`
	TransactionID int64     `json:"transaction_id"`
	OpenContracts float64   `json:"open_contracts"`
	CostBasis     float64   `json:"cost_basis"`
	AvgCost       float64   `json:"avg_cost"`
}

// ListEquityLots returns the open and consumed equity lots from the last run.
func ListEquityLots(c *fiber.Ctx) error {
	cacheKey := "lots:equity"
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

	sql := `SELECT id, instrument, open_date, transaction_id, open_quantity,
		cost_basis, avg_price FROM equity_lots ORDER BY id`
	rows, err := trx.Query(ctx, sql)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		log.Warn().Err(err).Msg("equity lot query failed")
		return fiber.ErrNotFound
	}

	lots := []equityLot{}
	for rows.Next() {
		lot := equityLot{}
		err := rows.Scan(&lot.ID, &lot.Instrument, &lot.OpenDate,
			&lot.TransactionID, &lot.OpenQuantity, &lot.CostBasis, &lot.AvgPrice)
		if err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Warn().Err(err).Msg("equity lot scan failed")
			return fiber.ErrInternalServerError
		}
		lots = append(lots, lot)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
	}

	return sendCached(c, cacheKey, lots)
}

// ListOptionLots returns the signed option contract lots from the last run.
func ListOptionLots(c *fiber.Ctx) error {
	cacheKey := "lots:option"
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

	sql := `SELECT id, instrument, expiration, option_type, strike, open_date,
		transaction_id, open_contracts, cost_basis, avg_cost
		FROM option_lots ORDER BY id`
	rows, err := trx.Query(ctx, sql)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		log.Warn().Err(err).Msg("option lot query failed")
		return fiber.ErrNotFound
	}

	lots := []optionLot{}
	for rows.Next() {
		lot := optionLot{}
		err := rows.Scan(&lot.ID, &lot.Instrument, &lot.Expiration,
			&lot.OptionType, &lot.Strike, &lot.OpenDate, &lot.TransactionID,
			&lot.OpenContracts, &lot.CostBasis, &lot.AvgCost)
		if err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Warn().Err(err).Msg("option lot scan failed")
			return fiber.ErrInternalServerError
		}
		lots = append(lots, lot)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
	}

	return sendCached(c, cacheKey, lots)
}

func sendCached(c *fiber.Ctx, cacheKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not marshal response")
		return fiber.ErrInternalServerError
	}
	if err := common.CacheSet(cacheKey, body); err != nil {
		log.Warn().Err(err).Msg("could not cache response")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
