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

// Package ledger holds the canonical transaction record and the enrichment
// step that turns a raw brokerage row into everything the downstream engines
// need: a canonical kind, a signed cash flow, option contract attributes,
// the accounting period, and the Modified Dietz time weight.
package ledger

import (
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// Canonical transaction kinds. Raw broker codes are mapped onto these by the
// embedded code table in codes.toml.
const (
	BuyTransaction         = "BUY"
	SellTransaction        = "SELL"
	ReceiveTransaction     = "RECEIVE"
	SplitTransaction       = "SPLIT"
	DividendTransaction    = "DIVIDEND"
	BuyToOpenTransaction   = "BTO"
	SellToOpenTransaction  = "STO"
	BuyToCloseTransaction  = "BTC"
	SellToCloseTransaction = "STC"
	ExpirationTransaction  = "OEXP"
	CashTransaction        = "CASH"
	FeeTransaction         = "FEE"
	OtherTransaction       = "OTHER"
)

// Class partitions transaction kinds by which engine consumes them.
type Class string

const (
	ClassEquity   Class = "equity"
	ClassOption   Class = "option"
	ClassDividend Class = "dividend"
	ClassCash     Class = "cash"
	ClassUnknown  Class = "unknown"
)

// OptionType is the contract right encoded in an option description.
type OptionType string

const (
	CallOption OptionType = "Call"
	PutOption  OptionType = "Put"
)

// Transaction is an immutable ledger entry as produced by the external
// ingestion layer. The engine only ever reads these rows.
type Transaction struct {
	ID           int64
	ActivityDate time.Time
	Code         string
	Instrument   string
	Quantity     float64
	Price        float64
	Amount       float64
	Description  string
}

// OptionAttributes are the contract coordinates extracted from an option
// transaction's description text.
type OptionAttributes struct {
	Expiration time.Time
	Type       OptionType
	Strike     float64
}

// DividendDates carry the record and payment dates parsed from a dividend
// description. Record date substitutes the activity date downstream.
type DividendDates struct {
	RecordDate  time.Time
	PaymentDate time.Time
}

// EnrichedTransaction is a derived, read-only view of a Transaction. It is
// recomputed on every run and never persisted as authoritative state.
type EnrichedTransaction struct {
	Transaction

	Kind  string
	Class Class

	// CashFlow follows the capital-deployed convention: buys are positive
	// outflows, sells negative; every other kind keeps its original sign.
	CashFlow float64

	// Corrected is the date used for ordering and weighting. It equals the
	// activity date except for dividends, where the record date wins.
	Corrected   time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time

	// TimeWeight is (days remaining in period, inclusive) / (days in period).
	TimeWeight float64

	Option   *OptionAttributes
	Dividend *DividendDates

	SourceID []byte
}

// SourceID computes a stable content hash for a transaction so that repeated
// runs over the same ledger produce identical derived rows.
func (trx *Transaction) computeSourceID() []byte {
	h := blake3.New()
	fmt.Fprintf(h, "%d:%s:%s:%s:%f:%f:%f",
		trx.ID, trx.ActivityDate.Format("2006-01-02"), trx.Code,
		trx.Instrument, trx.Quantity, trx.Price, trx.Amount)
	return h.Sum(nil)
}

// ContractKey renders the option coordinates of an enriched transaction for
// diagnostics. Equity transactions render as the bare instrument.
func (trx *EnrichedTransaction) ContractKey() string {
	if trx.Option == nil {
		return trx.Instrument
	}
	return fmt.Sprintf("%s %s %s $%.2f", trx.Instrument,
		trx.Option.Expiration.Format("2006-01-02"), trx.Option.Type, trx.Option.Strike)
}
