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
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/navledger/navledger/common"
	"github.com/navledger/navledger/database"
	"github.com/navledger/navledger/dietz"
)

type returnSummary struct {
	Instrument     string    `json:"instrument"`
	LinkedReturns  []float64 `json:"linked_returns"`
	LifetimeReturn float64   `json:"lifetime_return"`
	SharpeRatio    *float64  `json:"sharpe_ratio"`
}

// ListReturns compounds the stored asset value rows into linked, life-to-date,
// and sharpe measures per instrument, optionally filtered by the instrument
// path parameter. The risk-free rate comes from config.
func ListReturns(c *fiber.Ctx) error {
	instrument := c.Params("instrument")

	cacheKey := "returns:" + instrument
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

	sql := `SELECT instrument, shares_eom, md_return FROM asset_value`
	args := []interface{}{}
	if instrument != "" {
		sql += ` WHERE instrument=$1`
		args = append(args, instrument)
	}
	sql += ` ORDER BY instrument, as_of_date`

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		log.Warn().Err(err).Str("Instrument", instrument).Msg("return query failed")
		return fiber.ErrNotFound
	}

	byInstrument := make(map[string][]*dietz.AssetValueRecord)
	order := []string{}
	for rows.Next() {
		record := &dietz.AssetValueRecord{}
		if err := rows.Scan(&record.Instrument, &record.SharesEOM, &record.MDReturn); err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Warn().Err(err).Msg("return scan failed")
			return fiber.ErrInternalServerError
		}
		if _, ok := byInstrument[record.Instrument]; !ok {
			order = append(order, record.Instrument)
		}
		byInstrument[record.Instrument] = append(byInstrument[record.Instrument], record)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
	}

	riskFree := viper.GetFloat64("dietz.risk_free")
	summaries := make([]returnSummary, 0, len(order))
	for _, name := range order {
		summary := dietz.Summarize(name, byInstrument[name], riskFree)
		out := returnSummary{
			Instrument:     summary.Instrument,
			LinkedReturns:  summary.Linked,
			LifetimeReturn: summary.LifetimeReturn,
		}
		if !math.IsNaN(summary.SharpeRatio) {
			sharpe := summary.SharpeRatio
			out.SharpeRatio = &sharpe
		}
		summaries = append(summaries, out)
	}

	return sendCached(c, cacheKey, summaries)
}
