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
	"time"

	"github.com/navledger/navledger/ledger"
)

// FlowKey addresses one (instrument, period) cell of the cash-flow table.
type FlowKey struct {
	Instrument string
	PeriodEnd  time.Time
}

// FlowTotals carries the net and time-weighted cash flow for one cell. It is
// a pure intermediate feeding the Modified Dietz denominator; it is never
// persisted.
type FlowTotals struct {
	Net      float64
	Weighted float64
}

// CashFlows aggregates enriched transactions into per-(instrument, period)
// net and weighted cash flows. The caller decides which transaction classes
// participate; the calculation itself is class-agnostic.
func CashFlows(trxs []*ledger.EnrichedTransaction) map[FlowKey]FlowTotals {
	flows := make(map[FlowKey]FlowTotals)
	for _, trx := range trxs {
		key := FlowKey{Instrument: trx.Instrument, PeriodEnd: trx.PeriodEnd}
		totals := flows[key]
		totals.Net += trx.CashFlow
		totals.Weighted += trx.CashFlow * trx.TimeWeight
		flows[key] = totals
	}
	return flows
}
