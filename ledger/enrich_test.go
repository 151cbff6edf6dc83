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

package ledger_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/navledger/navledger/ledger"
)

var _ = Describe("Enrich", func() {
	Describe("classification", func() {
		It("maps equity trade codes", func() {
			kind, class := ledger.Classify("Buy")
			Expect(kind).To(Equal(ledger.BuyTransaction))
			Expect(class).To(Equal(ledger.ClassEquity))

			kind, class = ledger.Classify("Sell")
			Expect(kind).To(Equal(ledger.SellTransaction))
			Expect(class).To(Equal(ledger.ClassEquity))

			kind, class = ledger.Classify("REC")
			Expect(kind).To(Equal(ledger.ReceiveTransaction))
			Expect(class).To(Equal(ledger.ClassEquity))

			kind, class = ledger.Classify("SPL")
			Expect(kind).To(Equal(ledger.SplitTransaction))
			Expect(class).To(Equal(ledger.ClassEquity))
		})

		It("maps option trade codes", func() {
			kind, class := ledger.Classify("BTO")
			Expect(kind).To(Equal(ledger.BuyToOpenTransaction))
			Expect(class).To(Equal(ledger.ClassOption))

			kind, class = ledger.Classify("OEXP")
			Expect(kind).To(Equal(ledger.ExpirationTransaction))
			Expect(class).To(Equal(ledger.ClassOption))
		})

		It("maps cash codes", func() {
			kind, class := ledger.Classify("ACH")
			Expect(kind).To(Equal(ledger.CashTransaction))
			Expect(class).To(Equal(ledger.ClassCash))

			kind, class = ledger.Classify("DFEE")
			Expect(kind).To(Equal(ledger.FeeTransaction))
			Expect(class).To(Equal(ledger.ClassCash))
		})

		It("flags unknown codes instead of guessing", func() {
			kind, class := ledger.Classify("XYZ")
			Expect(kind).To(Equal(ledger.OtherTransaction))
			Expect(class).To(Equal(ledger.ClassUnknown))
		})
	})

	Describe("option descriptions", func() {
		It("extracts expiration, type, and strike", func() {
			trx := &ledger.Transaction{
				ID:           1,
				ActivityDate: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
				Code:         "BTO",
				Instrument:   "TOST",
				Quantity:     2,
				Amount:       -250,
				Description:  "TOST 1/17/2025 Call $40.00",
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.Option).NotTo(BeNil())
			Expect(enriched.Option.Expiration).To(Equal(time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)))
			Expect(enriched.Option.Type).To(Equal(ledger.CallOption))
			Expect(enriched.Option.Strike).To(Equal(40.0))
		})

		It("handles puts and comma strikes", func() {
			trx := &ledger.Transaction{
				ID:          2,
				Code:        "STO",
				Instrument:  "SPX",
				Quantity:    1,
				Amount:      500,
				Description: "SPX 3/21/2025 Put $4,100.00",
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.Option.Type).To(Equal(ledger.PutOption))
			Expect(enriched.Option.Strike).To(Equal(4100.0))
		})

		It("fails when an option description cannot be parsed", func() {
			trx := &ledger.Transaction{
				ID:          3,
				Code:        "BTO",
				Instrument:  "TOST",
				Description: "not an option",
			}
			_, err := ledger.Enrich(trx)
			Expect(err).To(MatchError(ledger.ErrOptionAttributes))
		})
	})

	Describe("dividend record dates", func() {
		It("substitutes the record date for the activity date", func() {
			trx := &ledger.Transaction{
				ID:           4,
				ActivityDate: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				Code:         "CDIV",
				Instrument:   "MSFT",
				Amount:       31.25,
				Description:  "MSFT Cash Div: R/D 2024-12-16 P/D 2025-01-02",
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.Dividend).NotTo(BeNil())
			Expect(enriched.Corrected).To(Equal(time.Date(2024, 12, 16, 0, 0, 0, 0, time.UTC)))
			Expect(enriched.PeriodEnd).To(Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))
		})

		It("keeps the activity date when no record date is present", func() {
			trx := &ledger.Transaction{
				ID:           5,
				ActivityDate: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				Code:         "CDIV",
				Instrument:   "MSFT",
				Amount:       31.25,
				Description:  "MSFT Cash Dividend",
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.Corrected).To(Equal(trx.ActivityDate))
		})
	})

	Describe("time weights", func() {
		It("weights a mid-month flow by remaining days inclusive", func() {
			// Nov 20 in a 30 day month: (30 - 20 + 1) / 30
			trx := &ledger.Transaction{
				ID:           6,
				ActivityDate: time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC),
				Code:         "Buy",
				Instrument:   "AAPL",
				Quantity:     10,
				Price:        100,
				Amount:       -1000,
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.TimeWeight).To(BeNumerically("~", 11.0/30.0, 1e-12))
		})

		It("weights the first day of the month at 1", func() {
			trx := &ledger.Transaction{
				ID:           7,
				ActivityDate: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
				Code:         "Buy",
				Instrument:   "AAPL",
				Quantity:     1,
				Price:        100,
				Amount:       -100,
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.TimeWeight).To(Equal(1.0))
		})
	})

	Describe("cash flow signs", func() {
		It("stores buys as positive deployments", func() {
			trx := &ledger.Transaction{
				ID:           8,
				ActivityDate: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
				Code:         "Buy",
				Instrument:   "AAPL",
				Quantity:     10,
				Price:        100,
				Amount:       -1000,
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.CashFlow).To(Equal(1000.0))
		})

		It("stores sells as negative deployments", func() {
			trx := &ledger.Transaction{
				ID:           9,
				ActivityDate: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
				Code:         "Sell",
				Instrument:   "AAPL",
				Quantity:     10,
				Price:        120,
				Amount:       1200,
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.CashFlow).To(Equal(-1200.0))
		})

		It("leaves other kinds untouched", func() {
			trx := &ledger.Transaction{
				ID:           10,
				ActivityDate: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
				Code:         "ACH",
				Amount:       -500,
			}
			enriched, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(enriched.CashFlow).To(Equal(-500.0))
		})
	})

	Describe("source identity", func() {
		It("is stable across enrichments", func() {
			trx := &ledger.Transaction{
				ID:           11,
				ActivityDate: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
				Code:         "Buy",
				Instrument:   "AAPL",
				Quantity:     10,
				Price:        100,
				Amount:       -1000,
			}
			first, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			second, err := ledger.Enrich(trx)
			Expect(err).To(BeNil())
			Expect(first.SourceID).To(Equal(second.SourceID))
			Expect(first.SourceID).NotTo(BeEmpty())
		})
	})
})
