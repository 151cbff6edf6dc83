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

package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/navledger/navledger/common"
	"github.com/navledger/navledger/database"
	"github.com/navledger/navledger/dietz"
	"github.com/navledger/navledger/fifo"
	"github.com/navledger/navledger/ledger"
	"github.com/navledger/navledger/marketdata"
	"github.com/navledger/navledger/pipeline"
)

var AsOfDate string

func init() {
	processCmd.Flags().StringVar(&AsOfDate, "date", "", "Date specified as YYYY-MM-dd to compute measurements through")
	rootCmd.AddCommand(processCmd)
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Rebuild lots, realized gains, and asset values from the ledger",
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		log.Info().Msg("initialized logging")

		ctx := context.Background()

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}

		asOf := asOfTime()

		trxs, err := ledger.LoadTransactions(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load transaction ledger")
		}

		prices, err := marketdata.LoadPrices(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load daily prices")
		}

		result, err := pipeline.Run(ctx, trxs, prices, asOf)
		if err != nil {
			log.Fatal().Err(err).Msg("pipeline run failed")
		}

		for _, diag := range result.Diagnostics {
			log.Warn().
				Str("Kind", string(diag.Kind)).
				Str("Key", diag.Key).
				Int64("TransactionID", diag.TransactionID).
				Float64("Shortfall", diag.Shortfall).
				Msg("pipeline diagnostic")
		}

		// Persist lots, gains, and asset values in a single transaction so a
		// failed run leaves the previous state untouched.
		trx, err := database.Trx(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not begin transaction")
		}

		if err := fifo.Replace(ctx, trx, result.Equities, result.Options); err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Fatal().Err(err).Msg("could not save lots and realized gains")
		}

		if err := dietz.SaveAssetValues(ctx, trx, result.AssetValues); err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Fatal().Err(err).Msg("could not save asset values")
		}

		if err := trx.Commit(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not commit transaction")
		}

		for _, summary := range result.Returns {
			log.Info().
				Str("Instrument", summary.Instrument).
				Float64("LifetimeReturn", summary.LifetimeReturn).
				Float64("SharpeRatio", summary.SharpeRatio).
				Msg("instrument return summary")
		}

		log.Info().
			Str("RunID", result.RunID).
			Time("AsOf", asOf).
			Int("NumAssetValues", len(result.AssetValues)).
			Msg("process complete")
	},
}

func asOfTime() time.Time {
	tz := common.GetTimezone()
	if AsOfDate == "" {
		return time.Now().In(tz)
	}
	dt, err := time.ParseInLocation("2006-01-02", AsOfDate, tz)
	if err != nil {
		log.Fatal().Err(err).Str("InputStr", AsOfDate).Msg("could not parse to date - expected format 2006-01-02")
	}
	return dt
}
