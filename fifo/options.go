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

// OptionResult is the full derived option state for one run.
type OptionResult struct {
	Lots        []*OptionLot
	Gains       []*RealizedGain
	Diagnostics []Diagnostic
}

// ProcessOptions replays option events keyed by the full contract coordinates
// (instrument, expiration, type, strike). Contract keys are processed on
// independent workers, like equities, with IDs assigned deterministically
// after the merge.
func ProcessOptions(trxs []*ledger.EnrichedTransaction) *OptionResult {
	byKey := make(map[OptionKey][]*ledger.EnrichedTransaction)
	for _, trx := range trxs {
		if trx.Class != ledger.ClassOption || trx.Option == nil {
			continue
		}
		key := OptionKey{
			Instrument: trx.Instrument,
			Expiration: trx.Option.Expiration,
			Type:       trx.Option.Type,
			Strike:     trx.Option.Strike,
		}
		byKey[key] = append(byKey[key], trx)
	}

	keys := make([]OptionKey, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	perKey := make(map[OptionKey]*OptionResult, len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())

	for _, key := range keys {
		wg.Add(1)
		go func(key OptionKey, events []*ledger.EnrichedTransaction) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			keyResult := processOptionKey(key, events)
			mu.Lock()
			perKey[key] = keyResult
			mu.Unlock()
		}(key, byKey[key])
	}
	wg.Wait()

	result := &OptionResult{}
	var nextLotID int64 = 1
	for _, key := range keys {
		keyResult := perKey[key]
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

func processOptionKey(key OptionKey, events []*ledger.EnrichedTransaction) *OptionResult {
	sortEvents(events)

	result := &OptionResult{}
	subLog := log.With().Str("ContractKey", key.String()).Logger()

	openLot := func(trx *ledger.EnrichedTransaction, contracts float64) {
		// Amount is a negative outflow for opens-to-buy and a positive
		// inflow for opens-to-sell; negating yields the signed cost basis
		// (a short lot carries a credit as negative cost).
		cost := -trx.Amount
		lot := &OptionLot{
			Key:           key,
			OpenDate:      trx.Corrected,
			TransactionID: trx.ID,
			OpenContracts: contracts,
			CostBasis:     cost,
			AvgCost:       cost / contracts,
		}
		result.Lots = append(result.Lots, lot)
	}

	closeLots := func(trx *ledger.EnrichedTransaction, short bool) {
		remaining := trx.Quantity
		perContract := 0.0
		if trx.Quantity != 0 {
			perContract = trx.Amount / trx.Quantity
		}

		for _, lot := range result.Lots {
			if remaining <= quantityEpsilon {
				break
			}
			open := lot.OpenContracts
			if short {
				open = -open
			}
			if open <= quantityEpsilon {
				continue
			}

			consumed := math.Min(open, remaining)
			signed := consumed
			if short {
				signed = -consumed
			}

			gain := &RealizedGain{
				TransactionID: trx.ID,
				Instrument:    key.Instrument,
				ContractKey:   key.String(),
				CloseDate:     trx.Corrected,
				Quantity:      consumed,
				AllocatedCost: lot.AvgCost * signed,
				Proceeds:      perContract * consumed,
				lot:           lot,
			}
			gain.Gain = gain.Proceeds - gain.AllocatedCost
			result.Gains = append(result.Gains, gain)

			lot.OpenContracts -= signed
			lot.CostBasis = lot.AvgCost * lot.OpenContracts
			remaining -= consumed
		}

		if remaining > quantityEpsilon {
			subLog.Warn().Int64("TransactionID", trx.ID).Float64("Shortfall", remaining).Bool("Short", short).Msg("close quantity exceeds open contracts; applying partially")
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Kind:          Overconsumption,
				Key:           key.String(),
				TransactionID: trx.ID,
				Shortfall:     remaining,
			})
		}
	}

	for _, trx := range events {
		switch trx.Kind {
		case ledger.BuyToOpenTransaction:
			openLot(trx, trx.Quantity)
		case ledger.SellToOpenTransaction:
			openLot(trx, -trx.Quantity)
		case ledger.SellToCloseTransaction:
			closeLots(trx, false)
		case ledger.BuyToCloseTransaction:
			closeLots(trx, true)
		case ledger.ExpirationTransaction:
			// Worthless expiration: force-realize every remaining
			// position at zero proceeds. Assignment is not modeled.
			for _, lot := range result.Lots {
				if math.Abs(lot.OpenContracts) <= quantityEpsilon {
					continue
				}
				gain := &RealizedGain{
					TransactionID: trx.ID,
					Instrument:    key.Instrument,
					ContractKey:   key.String(),
					CloseDate:     trx.Corrected,
					Quantity:      math.Abs(lot.OpenContracts),
					AllocatedCost: lot.AvgCost * lot.OpenContracts,
					Proceeds:      0,
					lot:           lot,
				}
				gain.Gain = -gain.AllocatedCost
				result.Gains = append(result.Gains, gain)

				lot.OpenContracts = 0
				lot.CostBasis = 0
			}
		default:
			subLog.Warn().Int64("TransactionID", trx.ID).Str("Kind", trx.Kind).Msg("unrecognized option transaction kind")
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Kind:          ClassificationGap,
				Key:           key.String(),
				TransactionID: trx.ID,
			})
		}
	}

	return result
}
