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
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/navledger/navledger/ledger"
)

// PriceSource provides daily close prices; implemented by marketdata.Series.
type PriceSource interface {
	FirstCloseInRange(instrument string, start, end time.Time) (float64, bool)
	LastCloseInRange(instrument string, start, end time.Time) (float64, bool)
}

// AssetValueRecord is one (instrument, period) row of the asset value table.
// It is fully derived and idempotently recomputable. Prices and NAVs are NaN
// when no close price is available for the period; MDReturn is nil when the
// denominator is zero or undefined.
type AssetValueRecord struct {
	Instrument  string
	PeriodStart time.Time
	PeriodEnd   time.Time

	SharesBOM float64
	SharesEOM float64
	PriceBOM  float64
	PriceEOM  float64
	NavBOM    float64
	NavEOM    float64

	NetCashFlow      float64
	WeightedCashFlow float64

	PnL            float64
	AverageCapital float64
	MDReturn       *float64
}

func round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}

// Aggregate folds one instrument's periods, in order, into asset value
// records. Share counts are a running cumulative sum over the instrument's
// buy/sell/split history; prices roll forward so that a period's BOM price is
// the prior period's EOM price.
func Aggregate(instrument string, periods []Period, trxs []*ledger.EnrichedTransaction, flows map[FlowKey]FlowTotals, prices PriceSource) []*AssetValueRecord {
	records := make([]*AssetValueRecord, 0, len(periods))

	var sharesBOM float64
	priceBOM := math.NaN()

	for _, period := range periods {
		var buys, sells, splits float64
		for _, trx := range trxs {
			if trx.Corrected.Before(period.Start) || trx.Corrected.After(period.End) {
				continue
			}
			switch trx.Kind {
			case ledger.BuyTransaction, ledger.ReceiveTransaction:
				buys += trx.Quantity
			case ledger.SellTransaction:
				sells += trx.Quantity
			case ledger.SplitTransaction:
				// Split rows carry the additional shares received.
				splits += trx.Quantity
			}
		}
		sharesEOM := sharesBOM + buys - sells + splits

		if math.IsNaN(priceBOM) {
			// First period (or no price seen yet): fall back to the
			// earliest close inside the period.
			if px, ok := prices.FirstCloseInRange(instrument, period.Start, period.End); ok {
				priceBOM = px
			}
		}
		priceEOM := math.NaN()
		if px, ok := prices.LastCloseInRange(instrument, period.Start, period.End); ok {
			priceEOM = px
		} else {
			log.Warn().Str("Instrument", instrument).Time("PeriodEnd", period.End).Msg("no close price available for period")
		}

		totals := flows[FlowKey{Instrument: instrument, PeriodEnd: period.End}]

		record := &AssetValueRecord{
			Instrument:       instrument,
			PeriodStart:      period.Start,
			PeriodEnd:        period.End,
			SharesBOM:        sharesBOM,
			SharesEOM:        sharesEOM,
			PriceBOM:         priceBOM,
			PriceEOM:         priceEOM,
			NavBOM:           sharesBOM * priceBOM,
			NavEOM:           sharesEOM * priceEOM,
			NetCashFlow:      totals.Net,
			WeightedCashFlow: totals.Weighted,
		}
		record.PnL = round(record.NavEOM-record.NavBOM-record.NetCashFlow, 2)

		switch {
		case record.SharesBOM == 0 && record.SharesEOM > 0:
			// Opening period: capital at risk is what was deployed.
			record.AverageCapital = record.NetCashFlow
		case record.SharesBOM > 0 && record.SharesEOM == 0:
			// Closing period: the net flow is negative (capital returned).
			record.AverageCapital = math.Abs(record.NetCashFlow)
		default:
			record.AverageCapital = record.NavBOM + record.WeightedCashFlow
		}

		if record.AverageCapital != 0 && !math.IsNaN(record.AverageCapital) && !math.IsNaN(record.PnL) {
			r := round(record.PnL/record.AverageCapital, 6)
			record.MDReturn = &r
		}

		records = append(records, record)

		sharesBOM = sharesEOM
		if !math.IsNaN(priceEOM) {
			priceBOM = priceEOM
		}
	}

	return records
}
