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

// Package pipeline runs the full derivation: enrich the ledger, replay the
// FIFO engines, and aggregate per-instrument monthly asset values. The whole
// run is a pure function of (ledger, prices, as-of date); repeating it over
// the same inputs produces identical output.
package pipeline

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/navledger/navledger/dietz"
	"github.com/navledger/navledger/fifo"
	"github.com/navledger/navledger/ledger"
	"github.com/navledger/navledger/observability/opentelemetry"
)

// Result bundles everything one pipeline run derives.
type Result struct {
	RunID       string
	Fingerprint []byte

	Enriched []*ledger.EnrichedTransaction
	Equities *fifo.EquityResult
	Options  *fifo.OptionResult

	// AssetValues are ordered by instrument, then period start.
	AssetValues []*dietz.AssetValueRecord

	// Returns carry one compounded summary per instrument, in the same
	// instrument order as AssetValues.
	Returns []*dietz.ReturnSummary

	Diagnostics []fifo.Diagnostic
}

// fingerprint hashes the source IDs of every input row so two runs over the
// same ledger can be recognized as identical.
func fingerprint(trxs []*ledger.EnrichedTransaction) []byte {
	h := blake3.New()
	for _, trx := range trxs {
		h.Write(trx.SourceID)
	}
	return h.Sum(nil)
}

// isEquityTrade reports whether a transaction moves capital in or out of an
// equity position and therefore belongs in the Modified Dietz cash flows.
func isEquityTrade(trx *ledger.EnrichedTransaction) bool {
	switch trx.Kind {
	case ledger.BuyTransaction, ledger.SellTransaction:
		return true
	}
	return false
}

// Run executes the full derivation over an already-loaded ledger.
func Run(ctx context.Context, trxs []*ledger.Transaction, prices dietz.PriceSource, asOf time.Time) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.Run")
	defer span.End()

	result := &Result{RunID: uuid.New().String()}
	subLog := log.With().Str("RunID", result.RunID).Logger()
	span.SetAttributes(
		attribute.KeyValue{Key: "RunID", Value: attribute.StringValue(result.RunID)},
		attribute.KeyValue{Key: "NumTransactions", Value: attribute.IntValue(len(trxs))},
	)

	enriched, err := enrichStage(ctx, trxs)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("enrichment failed; aborting run")
		return nil, err
	}
	result.Enriched = enriched
	result.Fingerprint = fingerprint(enriched)

	result.Equities, result.Options = lotStage(ctx, enriched)
	result.Diagnostics = append(result.Diagnostics, result.Equities.Diagnostics...)
	result.Diagnostics = append(result.Diagnostics, result.Options.Diagnostics...)

	result.AssetValues = valueStage(ctx, enriched, prices, asOf)
	result.Returns = returnStage(ctx, result.AssetValues)

	subLog.Info().
		Int("NumEnriched", len(result.Enriched)).
		Int("NumEquityLots", len(result.Equities.Lots)).
		Int("NumOptionLots", len(result.Options.Lots)).
		Int("NumAssetValues", len(result.AssetValues)).
		Int("NumDiagnostics", len(result.Diagnostics)).
		Msg("pipeline run complete")
	return result, nil
}

func enrichStage(ctx context.Context, trxs []*ledger.Transaction) ([]*ledger.EnrichedTransaction, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.enrich")
	defer span.End()
	return ledger.EnrichAll(trxs)
}

func lotStage(ctx context.Context, enriched []*ledger.EnrichedTransaction) (*fifo.EquityResult, *fifo.OptionResult) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.lots")
	defer span.End()

	var equities *fifo.EquityResult
	var options *fifo.OptionResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		equities = fifo.ProcessEquities(enriched)
	}()
	go func() {
		defer wg.Done()
		options = fifo.ProcessOptions(enriched)
	}()
	wg.Wait()
	return equities, options
}

func valueStage(ctx context.Context, enriched []*ledger.EnrichedTransaction, prices dietz.PriceSource, asOf time.Time) []*dietz.AssetValueRecord {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.assetvalues")
	defer span.End()

	// Only equity positions carry a month-end NAV; option and cash rows do
	// not participate in asset values. Dividend rows move no shares or flows
	// but their record-date months still belong to the instrument's span.
	byInstrument := make(map[string][]*ledger.EnrichedTransaction)
	for _, trx := range enriched {
		if trx.Class != ledger.ClassEquity && trx.Class != ledger.ClassDividend {
			continue
		}
		byInstrument[trx.Instrument] = append(byInstrument[trx.Instrument], trx)
	}

	trades := make([]*ledger.EnrichedTransaction, 0, len(enriched))
	for _, trx := range enriched {
		if isEquityTrade(trx) {
			trades = append(trades, trx)
		}
	}
	flows := dietz.CashFlows(trades)

	instruments := make([]string, 0, len(byInstrument))
	for instrument := range byInstrument {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)

	perKey := make(map[string][]*dietz.AssetValueRecord, len(instruments))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())

	for _, instrument := range instruments {
		wg.Add(1)
		go func(instrument string, trxs []*ledger.EnrichedTransaction) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			periods := dietz.PeriodsFor(trxs, asOf)
			records := dietz.Aggregate(instrument, periods, trxs, flows, prices)
			mu.Lock()
			perKey[instrument] = records
			mu.Unlock()
		}(instrument, byInstrument[instrument])
	}
	wg.Wait()

	records := make([]*dietz.AssetValueRecord, 0, len(instruments)*12)
	for _, instrument := range instruments {
		records = append(records, perKey[instrument]...)
	}
	return records
}

func returnStage(ctx context.Context, records []*dietz.AssetValueRecord) []*dietz.ReturnSummary {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.returns")
	defer span.End()

	riskFree := viper.GetFloat64("dietz.risk_free")

	byInstrument := make(map[string][]*dietz.AssetValueRecord)
	order := make([]string, 0, len(byInstrument))
	for _, record := range records {
		if _, ok := byInstrument[record.Instrument]; !ok {
			order = append(order, record.Instrument)
		}
		byInstrument[record.Instrument] = append(byInstrument[record.Instrument], record)
	}

	summaries := make([]*dietz.ReturnSummary, 0, len(order))
	for _, instrument := range order {
		summaries = append(summaries, dietz.Summarize(instrument, byInstrument[instrument], riskFree))
	}
	return summaries
}
