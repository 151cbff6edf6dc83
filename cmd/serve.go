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
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/navledger/navledger/common"
	"github.com/navledger/navledger/database"
	"github.com/navledger/navledger/dietz"
	"github.com/navledger/navledger/fifo"
	"github.com/navledger/navledger/ledger"
	"github.com/navledger/navledger/marketdata"
	"github.com/navledger/navledger/middleware"
	"github.com/navledger/navledger/observability/opentelemetry"
	"github.com/navledger/navledger/pipeline"
	"github.com/navledger/navledger/router"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	serveCmd.Flags().String("recompute-at", "02:00", "Local time of day to rerun the pipeline")
	viper.BindPFlag("server.recompute_at", serveCmd.Flags().Lookup("recompute-at"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the navledger read API server",
	Long:  `Run HTTP server that serves derived lots, gains, and asset values`,
	Run: func(cmd *cobra.Command, args []string) {
		if Profile {
			f, err := os.Create("profile.out")
			if err != nil {
				log.Fatal().Err(err).Msg("could not create profile output file")
			}
			pprof.StartCPUProfile(f)
			defer pprof.StopCPUProfile()
		}

		if Trace {
			f, err := os.Create("trace.out")
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create trace output file")
			}
			defer func() {
				if err := f.Close(); err != nil {
					log.Fatal().Err(err).Msg("failed to close trace file")
				}
			}()

			if err := trace.Start(f); err != nil {
				log.Fatal().Err(err).Msg("failed to start trace")
			}
			defer trace.Stop()
		}

		common.SetupLogging()
		common.SetupCache()
		log.Info().Msg("initialized logging")

		shutdownTracer, err := opentelemetry.Setup()
		if err != nil {
			log.Warn().Err(err).Msg("could not initialize tracing; continuing without it")
		}

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}

		// Create new Fiber instance
		app := fiber.New()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if shutdownTracer != nil {
				if err := shutdownTracer(ctx); err != nil {
					log.Error().Err(err).Msg("could not shut down tracer")
				}
			}
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("could not shut down server")
			}
		}()

		// Configure CORS
		corsConfig := cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "*",
			AllowMethods: "GET,HEAD",
		}
		app.Use(cors.New(corsConfig))

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Setup routes
		router.SetupRoutes(app)

		// Rerun the pipeline nightly so asset values track new ledger rows
		// and fresh prices.
		tz := common.GetTimezone()
		scheduler := gocron.NewScheduler(tz)
		scheduler.Every(1).Day().At(viper.GetString("server.recompute_at")).Do(recompute)
		scheduler.StartAsync()

		// Start server
		err = app.Listen(":" + viper.GetString("server.port"))
		if err != nil {
			log.Fatal().Err(err).Msg("server exited with error")
		}
	},
}

func recompute() {
	ctx := context.Background()
	subLog := log.With().Str("Job", "recompute").Logger()
	subLog.Info().Msg("starting scheduled recompute")

	trxs, err := ledger.LoadTransactions(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not load transaction ledger")
		return
	}

	prices, err := marketdata.LoadPrices(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not load daily prices")
		return
	}

	result, err := pipeline.Run(ctx, trxs, prices, time.Now().In(common.GetTimezone()))
	if err != nil {
		subLog.Error().Err(err).Msg("pipeline run failed")
		return
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not begin transaction")
		return
	}
	if err := fifo.Replace(ctx, trx, result.Equities, result.Options); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		subLog.Error().Err(err).Msg("could not save lots and realized gains")
		return
	}
	if err := dietz.SaveAssetValues(ctx, trx, result.AssetValues); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		subLog.Error().Err(err).Msg("could not save asset values")
		return
	}
	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Err(err).Msg("could not commit transaction")
		return
	}

	common.CachePurge()
	subLog.Info().Str("RunID", result.RunID).Msg("scheduled recompute complete")
}
