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

// Package dietz derives calendar-month accounting periods, weighted cash
// flows, and the per-(instrument, period) asset value records that carry the
// Modified Dietz return.
package dietz

import (
	"time"

	"github.com/navledger/navledger/ledger"
)

// Period is one calendar-month window [Start, End] for an instrument.
type Period struct {
	Start time.Time
	End   time.Time
}

func monthStart(dt time.Time) time.Time {
	return time.Date(dt.Year(), dt.Month(), 1, 0, 0, 0, 0, dt.Location())
}

// PeriodsFor derives the monthly period sequence for a single instrument's
// enriched transactions: from the month of first activity through the month
// of last activity, extended to the month containing now while the position
// is still open (net shares bought exceed shares sold).
func PeriodsFor(trxs []*ledger.EnrichedTransaction, now time.Time) []Period {
	if len(trxs) == 0 {
		return nil
	}

	var first, last time.Time
	var netShares float64
	for _, trx := range trxs {
		if first.IsZero() || trx.Corrected.Before(first) {
			first = trx.Corrected
		}
		if trx.Corrected.After(last) {
			last = trx.Corrected
		}
		switch trx.Kind {
		case ledger.BuyTransaction, ledger.ReceiveTransaction:
			netShares += trx.Quantity
		case ledger.SellTransaction:
			netShares -= trx.Quantity
		}
	}

	end := monthStart(last)
	if netShares > 0 {
		if current := monthStart(now); current.After(end) {
			end = current
		}
	}

	periods := make([]Period, 0, 12)
	for month := monthStart(first); !month.After(end); month = month.AddDate(0, 1, 0) {
		periods = append(periods, Period{
			Start: month,
			End:   month.AddDate(0, 1, -1),
		})
	}
	return periods
}
