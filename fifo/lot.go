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

// Package fifo replays the enriched transaction stream into open cost-basis
// lots and realized-gain records. Equity lots are keyed by instrument; option
// lots by the full contract coordinates so distinct contracts never offset
// each other. Lots are consumed strictly oldest-first.
package fifo

import (
	"fmt"
	"time"

	"github.com/navledger/navledger/ledger"
)

// EquityLot is a cost-basis unit opened by a buy or receive event. Its
// identity is permanent; closing events only shrink OpenQuantity toward zero.
type EquityLot struct {
	ID            int64
	Instrument    string
	OpenDate      time.Time
	TransactionID int64
	OpenQuantity  float64
	CostBasis     float64
	AvgPrice      float64
}

// OptionKey identifies a single option contract series.
type OptionKey struct {
	Instrument string
	Expiration time.Time
	Type       ledger.OptionType
	Strike     float64
}

func (k OptionKey) String() string {
	return fmt.Sprintf("%s %s %s $%.2f", k.Instrument, k.Expiration.Format("2006-01-02"), k.Type, k.Strike)
}

// OptionLot is a signed contract position: positive OpenContracts is long,
// negative is short. A short lot carries a negative cost basis (a credit).
type OptionLot struct {
	ID            int64
	Key           OptionKey
	OpenDate      time.Time
	TransactionID int64
	OpenContracts float64
	CostBasis     float64
	AvgCost       float64
}

// RealizedGain is booked each time a closing event consumes part of a lot:
// one record per (closing transaction, lot) pair touched.
type RealizedGain struct {
	TransactionID int64
	LotID         int64
	Instrument    string
	ContractKey   string
	CloseDate     time.Time
	Quantity      float64
	AllocatedCost float64
	Proceeds      float64
	Gain          float64

	lot lotRef
}

type lotRef interface {
	lotID() int64
}

func (lot *EquityLot) lotID() int64 { return lot.ID }
func (lot *OptionLot) lotID() int64 { return lot.ID }

// DiagnosticKind classifies the non-fatal conditions an engine reports.
type DiagnosticKind string

const (
	// ClassificationGap marks a transaction code neither engine recognizes.
	ClassificationGap DiagnosticKind = "classification-gap"
	// Overconsumption marks a close/sell that exceeded the open quantity
	// for its key. The excess stays unmatched.
	Overconsumption DiagnosticKind = "overconsumption"
	// BadSplitRatio marks a split whose encoded ratio is unusable.
	BadSplitRatio DiagnosticKind = "bad-split-ratio"
)

// Diagnostic is a structured warning surfaced to the caller instead of being
// silently dropped. None of these abort a run.
type Diagnostic struct {
	Kind          DiagnosticKind
	Key           string
	TransactionID int64
	Shortfall     float64
}
