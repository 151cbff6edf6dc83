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
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/navledger/navledger/ledger"
)

const quantityEpsilon = 1.0e-9

// EquityResult is the full derived equity state for one run.
type EquityResult struct {
	Lots        []*EquityLot
	Gains       []*RealizedGain
	Diagnostics []Diagnostic
}

// ProcessEquities replays all equity-class transactions, per instrument, in
// corrected-activity-date-then-id order. Instruments are processed on
// independent workers; lot state never crosses instruments so no
// synchronization is needed beyond collecting results. Lot and gain IDs are
// assigned after the merge so that output is deterministic regardless of
// scheduling.
func ProcessEquities(trxs []*ledger.EnrichedTransaction) *EquityResult {
	byInstrument := make(map[string][]*ledger.EnrichedTransaction)
	for _, trx := range trxs {
		// Unknown codes flow through so the engine can report them as
		// classification gaps rather than dropping them silently.
		if trx.Class != ledger.ClassEquity && trx.Class != ledger.ClassUnknown {
			continue
		}
		byInstrument[trx.Instrument] = append(byInstrument[trx.Instrument], trx)
	}

	instruments := make([]string, 0, len(byInstrument))
	for instrument := range byInstrument {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)

	perKey := make(map[string]*EquityResult, len(instruments))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())

	for _, instrument := range instruments {
		wg.Add(1)
		go func(instrument string, events []*ledger.EnrichedTransaction) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			keyResult := processEquityKey(instrument, events)
			mu.Lock()
			perKey[instrument] = keyResult
			mu.Unlock()
		}(instrument, byInstrument[instrument])
	}
	wg.Wait()

	result := &EquityResult{}
	var nextLotID int64 = 1
	for _, instrument := range instruments {
		keyResult := perKey[instrument]
		for _, lot := range keyResult.Lots {
			lot.ID = nextLotID
			nextLotID++
		}
		result.Lots = append(result.Lots, keyResult.Lots...)
		result.Gains = append(result.Gains, keyResult.Gains...)
		result.Diagnostics = append(result.Diagnostics, keyResult.Diagnostics...)
	}
	for _, gain := range result.Gains {
		gain.LotID = gain.lot.lotID()
	}

	return result
}

func sortEvents(events []*ledger.EnrichedTransaction) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Corrected.Equal(events[j].Corrected) {
			return events[i].Corrected.Before(events[j].Corrected)
		}
		return events[i].ID < events[j].ID
	})
}

func processEquityKey(instrument string, events []*ledger.EnrichedTransaction) *EquityResult {
	sortEvents(events)

	result := &EquityResult{}
	subLog := log.With().Str("Instrument", instrument).Logger()

	for _, trx := range events {
		switch trx.Kind {
		case ledger.BuyTransaction, ledger.ReceiveTransaction:
			// A received position with no cost basis opens a lot at
			// price zero; the cost formula handles it naturally.
			lot := &EquityLot{
				Instrument:    instrument,
				OpenDate:      trx.Corrected,
				TransactionID: trx.ID,
				OpenQuantity:  trx.Quantity,
				CostBasis:     trx.Price * trx.Quantity,
				AvgPrice:      trx.Price,
			}
			result.Lots = append(result.Lots, lot)
		case ledger.SellTransaction:
			remaining := trx.Quantity
			for _, lot := range result.Lots {
				if remaining <= quantityEpsilon {
					break
				}
				if lot.OpenQuantity <= quantityEpsilon {
					continue
				}

				consumed := math.Min(lot.OpenQuantity, remaining)
				gain := &RealizedGain{
					TransactionID: trx.ID,
					Instrument:    instrument,
					CloseDate:     trx.Corrected,
					Quantity:      consumed,
					AllocatedCost: lot.AvgPrice * consumed,
					Proceeds:      trx.Price * consumed,
					lot:           lot,
				}
				gain.Gain = gain.Proceeds - gain.AllocatedCost
				result.Gains = append(result.Gains, gain)

				// Average cost per share is invariant across partial
				// consumption; only the open quantity shrinks.
				lot.OpenQuantity -= consumed
				lot.CostBasis = lot.AvgPrice * lot.OpenQuantity
				remaining -= consumed
			}

			if remaining > quantityEpsilon {
				subLog.Warn().Int64("TransactionID", trx.ID).Float64("Shortfall", remaining).Msg("sell quantity exceeds open lots; applying partially")
				result.Diagnostics = append(result.Diagnostics, Diagnostic{
					Kind:          Overconsumption,
					Key:           instrument,
					TransactionID: trx.ID,
					Shortfall:     remaining,
				})
			}
		case ledger.SplitTransaction:
			// The upstream feed encodes an r-for-1 split as quantity r-1.
			ratio := 1 + trx.Quantity
			if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
				subLog.Warn().Int64("TransactionID", trx.ID).Float64("Ratio", ratio).Msg("split ratio is unusable; skipping split")
				result.Diagnostics = append(result.Diagnostics, Diagnostic{
					Kind:          BadSplitRatio,
					Key:           instrument,
					TransactionID: trx.ID,
				})
				continue
			}
			for _, lot := range result.Lots {
				if lot.OpenQuantity <= quantityEpsilon {
					continue
				}
				// Total cost is invariant under a split.
				lot.OpenQuantity *= ratio
				lot.AvgPrice /= ratio
			}
		default:
			subLog.Warn().Int64("TransactionID", trx.ID).Str("Kind", trx.Kind).Msg("unrecognized equity transaction kind")
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Kind:          ClassificationGap,
				Key:           instrument,
				TransactionID: trx.ID,
			})
		}
	}

	return result
}
