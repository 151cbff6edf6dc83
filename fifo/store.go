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

package fifo

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
)

// Replace discards the previous run's lot and gain tables and writes the new
// state, inside the caller's transaction. Derived state is rebuilt wholesale
// on every run, so truncate-and-insert keeps the tables exactly in step with
// the computation; the caller commits only when the whole run has succeeded.
func Replace(ctx context.Context, trx pgx.Tx, equities *EquityResult, options *OptionResult) error {
	for _, table := range []string{"equity_realized_gains", "option_realized_gains", "equity_lots", "option_lots"} {
		if _, err := trx.Exec(ctx, "DELETE FROM "+table); err != nil {
			log.Error().Stack().Err(err).Str("Table", table).Msg("could not clear derived table")
			return err
		}
	}

	equityLotSQL := `INSERT INTO equity_lots (
		"id", "instrument", "open_date", "transaction_id",
		"open_quantity", "cost_basis", "avg_price"
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, lot := range equities.Lots {
		_, err := trx.Exec(ctx, equityLotSQL, lot.ID, lot.Instrument, lot.OpenDate,
			lot.TransactionID, lot.OpenQuantity, lot.CostBasis, lot.AvgPrice)
		if err != nil {
			log.Error().Stack().Err(err).Int64("LotID", lot.ID).Msg("could not insert equity lot")
			return err
		}
	}

	optionLotSQL := `INSERT INTO option_lots (
		"id", "instrument", "expiration", "option_type", "strike",
		"open_date", "transaction_id", "open_contracts", "cost_basis", "avg_cost"
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, lot := range options.Lots {
		_, err := trx.Exec(ctx, optionLotSQL, lot.ID, lot.Key.Instrument,
			lot.Key.Expiration, string(lot.Key.Type), lot.Key.Strike, lot.OpenDate,
			lot.TransactionID, lot.OpenContracts, lot.CostBasis, lot.AvgCost)
		if err != nil {
			log.Error().Stack().Err(err).Int64("LotID", lot.ID).Msg("could not insert option lot")
			return err
		}
	}

	if err := insertGains(ctx, trx, "equity_realized_gains", equities.Gains); err != nil {
		return err
	}
	if err := insertGains(ctx, trx, "option_realized_gains", options.Gains); err != nil {
		return err
	}

	log.Debug().
		Int("NumEquityLots", len(equities.Lots)).
		Int("NumOptionLots", len(options.Lots)).
		Int("NumEquityGains", len(equities.Gains)).
		Int("NumOptionGains", len(options.Gains)).
		Msg("replaced derived lot tables")
	return nil
}

func insertGains(ctx context.Context, trx pgx.Tx, table string, gains []*RealizedGain) error {
	sql := `INSERT INTO ` + table + ` (
		"transaction_id", "lot_id", "instrument", "contract_key", "close_date",
		"quantity", "allocated_cost", "proceeds", "gain"
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, gain := range gains {
		_, err := trx.Exec(ctx, sql, gain.TransactionID, gain.LotID, gain.Instrument,
			gain.ContractKey, gain.CloseDate, gain.Quantity, gain.AllocatedCost,
			gain.Proceeds, gain.Gain)
		if err != nil {
			log.Error().Stack().Err(err).Str("Table", table).Int64("TransactionID", gain.TransactionID).Msg("could not insert realized gain")
			return err
		}
	}
	return nil
}
