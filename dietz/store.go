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

package dietz

import (
	"context"
	"math"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
)

// nullable maps NaN to SQL NULL so missing prices round-trip cleanly.
func nullable(x float64) interface{} {
	if math.IsNaN(x) {
		return nil
	}
	return x
}

// SaveAssetValues upserts asset value records keyed on (as_of_date,
// instrument), inside the caller's transaction. Re-running the pipeline
// overwrites each period's row in place rather than accumulating duplicates.
func SaveAssetValues(ctx context.Context, trx pgx.Tx, records []*AssetValueRecord) error {
	sql := `INSERT INTO asset_value (
		"as_of_date", "instrument", "period_start",
		"shares_bom", "shares_eom", "price_bom", "price_eom",
		"nav_bom", "nav_eom", "net_cash_flow", "weighted_cash_flow",
		"pnl", "average_capital", "md_return"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
	) ON CONFLICT ON CONSTRAINT asset_value_pkey DO UPDATE SET
		period_start = EXCLUDED.period_start,
		shares_bom = EXCLUDED.shares_bom,
		shares_eom = EXCLUDED.shares_eom,
		price_bom = EXCLUDED.price_bom,
		price_eom = EXCLUDED.price_eom,
		nav_bom = EXCLUDED.nav_bom,
		nav_eom = EXCLUDED.nav_eom,
		net_cash_flow = EXCLUDED.net_cash_flow,
		weighted_cash_flow = EXCLUDED.weighted_cash_flow,
		pnl = EXCLUDED.pnl,
		average_capital = EXCLUDED.average_capital,
		md_return = EXCLUDED.md_return`

	for _, record := range records {
		_, err := trx.Exec(ctx, sql,
			record.PeriodEnd, record.Instrument, record.PeriodStart,
			record.SharesBOM, record.SharesEOM,
			nullable(record.PriceBOM), nullable(record.PriceEOM),
			nullable(record.NavBOM), nullable(record.NavEOM),
			record.NetCashFlow, record.WeightedCashFlow,
			nullable(record.PnL), record.AverageCapital, record.MDReturn)
		if err != nil {
			log.Error().Stack().Err(err).
				Str("Instrument", record.Instrument).
				Time("AsOfDate", record.PeriodEnd).
				Msg("could not upsert asset value")
			return err
		}
	}

	log.Debug().Int("NumRecords", len(records)).Msg("saved asset values")
	return nil
}
