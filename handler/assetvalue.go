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

type assetValue struct {
	Instrument       string    `json:"instrument"`
	AsOfDate         time.Time `json:"as_of_date"`
	PeriodStart      time.Time `json:"period_start"`
	SharesBOM        float64   `json:"shares_bom"`
	SharesEOM        float64   `json:"shares_eom"`
	PriceBOM         *float64  `json:"price_bom"`
	PriceEOM         *float64  `json:"price_eom"`
	NavBOM           *float64  `json:"nav_bom"`
	NavEOM           *float64  `json:"nav_eom"`
	NetCashFlow      float64   `json:"net_cash_flow"`
	WeightedCashFlow float64   `json:"weighted_cash_flow"`
	PnL              *float64  `json:"pnl"`
	AverageCapital   float64   `json:"average_capital"`
	MDReturn         *float64  `json:"md_return"`
}

const assetValueSQL = `SELECT instrument, as_of_date, period_start,
	shares_bom, shares_eom, price_bom, price_eom, nav_bom, nav_eom,
	net_cash_flow, weighted_cash_flow, pnl, average_capital, md_return
	FROM asset_value`

// ListAssetValues returns every (instrument, period) record, optionally
// filtered by the instrument path parameter.
func ListAssetValues(c *fiber.Ctx) error {
	instrument := c.Params("instrument")

	cacheKey := "assetvalues:" + instrument
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

	sql := assetValueSQL + " ORDER BY instrument, as_of_date"
	args := []interface{}{}
	if instrument != "" {
		sql = assetValueSQL + " WHERE instrument=$1 ORDER BY as_of_date"
		args = append(args, instrument)
	}

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		log.Warn().Err(err).Str("Instrument", instrument).Msg("asset value query failed")
		return fiber.ErrNotFound
	}

	values := []assetValue{}
	for rows.Next() {
		v := assetValue{}
		err := rows.Scan(&v.Instrument, &v.AsOfDate, &v.PeriodStart,
			&v.SharesBOM, &v.SharesEOM, &v.PriceBOM, &v.PriceEOM,
			&v.NavBOM, &v.NavEOM, &v.NetCashFlow, &v.WeightedCashFlow,
			&v.PnL, &v.AverageCapital, &v.MDReturn)
		if err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Warn().Err(err).Msg("asset value scan failed")
			return fiber.ErrInternalServerError
		}
		values = append(values, v)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
	}

	body, err := json.Marshal(values)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not marshal asset values")
		return fiber.ErrInternalServerError
	}
	if err := common.CacheSet(cacheKey, body); err != nil {
		log.Warn().Err(err).Msg("could not cache asset values")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
