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
	"github.com/spf13/viper"

	"github.com/navledger/navledger/common"
	"github.com/navledger/navledger/database"
	"github.com/navledger/navledger/ledger"
	"github.com/navledger/navledger/marketdata"
)

var FetchBegin string

func init() {
	fetchCmd.Flags().StringVar(&FetchBegin, "begin", "", "Earliest date to fetch prices for (default: earliest ledger activity)")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download daily close prices for every instrument in the ledger",
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}

		trxs, err := ledger.LoadTransactions(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load transaction ledger")
		}

		tz := common.GetTimezone()
		begin := time.Now().In(tz)
		seen := make(map[string]bool)
		instruments := make([]string, 0, 50)
		for _, trx := range trxs {
			if trx.Instrument == "" {
				continue
			}
			if !seen[trx.Instrument] {
				seen[trx.Instrument] = true
				instruments = append(instruments, trx.Instrument)
			}
			if trx.ActivityDate.Before(begin) {
				begin = trx.ActivityDate
			}
		}
		common.ArrToUpper(instruments)

		if FetchBegin != "" {
			begin, err = time.ParseInLocation("2006-01-02", FetchBegin, tz)
			if err != nil {
				log.Fatal().Err(err).Str("InputStr", FetchBegin).Msg("could not parse begin date - expected format 2006-01-02")
			}
		}
		end := time.Now().In(tz)

		log.Info().Int("NumInstruments", len(instruments)).Time("Begin", begin).Time("End", end).Msg("fetching daily prices")

		provider := marketdata.NewTiingo(viper.GetString("tiingo.token"))
		series, err := provider.FetchDailyCloses(ctx, instruments, begin, end)
		if err != nil {
			log.Fatal().Err(err).Msg("could not fetch prices")
		}

		if err := marketdata.SavePrices(ctx, series); err != nil {
			log.Fatal().Err(err).Msg("could not save prices")
		}

		log.Info().Msg("fetch complete")
	},
}
