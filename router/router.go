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

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/navledger/navledger/handler"
)

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App) {
	api := app.Group("/v1")
	api.Get("/", handler.Ping)

	// Asset values (monthly NAV and Modified Dietz returns)
	assetValues := api.Group("/assetvalues")
	assetValues.Get("/:instrument", handler.ListAssetValues)
	assetValues.Get("/", handler.ListAssetValues)

	// Cost-basis lots
	lots := api.Group("/lots")
	lots.Get("/equity", handler.ListEquityLots)
	lots.Get("/option", handler.ListOptionLots)

	// Realized gains
	api.Get("/gains/:engine", handler.ListRealizedGains)

	// Compounded return summaries
	returns := api.Group("/returns")
	returns.Get("/:instrument", handler.ListReturns)
	returns.Get("/", handler.ListReturns)
}
