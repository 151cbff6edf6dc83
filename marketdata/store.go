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

package marketdata

import (
	"context"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"

	"github.com/navledger/navledger/database"
)

// LoadPrices reads every stored daily close into a Series.
func LoadPrices(ctx context.Context) (*Series, error) {
	stmt := &pgsql.SelectStatement{}
	for _, field := range []string{"instrument", "price_date", "close_price"} {
		stmt.Select(pgx.Identifier{field}.Sanitize())
	}
	stmt.From(pgx.Identifier{"daily_prices"}.Sanitize())
	stmt.Order("instrument, price_date")
	sql, args := pgsql.Build(stmt)

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		log.Error().Stack().Err(err).Str("Query", sql).Msg("could not load prices")
		return nil, err
	}

	series := NewSeries(nil)
	var numRows int
	for rows.Next() {
		var instrument string
		var point Point
		if err := rows.Scan(&instrument, &point.Date, &point.Close); err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Error().Stack().Err(err).Msg("could not scan price row")
			return nil, err
		}
		series.Add(instrument, point)
		numRows++
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	log.Debug().Int("NumPrices", numRows).Msg("loaded daily prices")
	return series, nil
}

// SavePrices upserts daily closes keyed on (instrument, price_date) so a
// re-fetch refreshes existing rows in place.
func SavePrices(ctx context.Context, series *Series) error {
	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return err
	}

	sql := `INSERT INTO daily_prices ("instrument", "price_date", "close_price")
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT daily_prices_pkey
		DO UPDATE SET close_price = EXCLUDED.close_price`

	var numRows int
	for _, instrument := range series.Instruments() {
		for _, pt := range series.points[instrument] {
			if _, err := trx.Exec(ctx, sql, instrument, pt.Date, pt.Close); err != nil {
				if err := trx.Rollback(ctx); err != nil {
					log.Error().Stack().Err(err).Msg("could not rollback transaction")
				}
				log.Error().Stack().Err(err).Str("Instrument", instrument).Time("PriceDate", pt.Date).Msg("could not upsert price")
				return err
			}
			numRows++
		}
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
		return err
	}

	log.Debug().Int("NumPrices", numRows).Msg("saved daily prices")
	return nil
}
