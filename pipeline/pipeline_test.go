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

package pipeline_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/navledger/navledger/dietz"
	"github.com/navledger/navledger/ledger"
	"github.com/navledger/navledger/marketdata"
	"github.com/navledger/navledger/pipeline"
)

var _ = Describe("Pipeline", func() {
	var (
		ctx    context.Context
		asOf   time.Time
		trxs   []*ledger.Transaction
		prices *marketdata.Series
	)

	day := func(year int, month time.Month, dom int) time.Time {
		return time.Date(year, month, dom, 0, 0, 0, 0, time.UTC)
	}

	trx := func(id int64, date time.Time, code, instrument string, quantity, price, amount float64, description string) *ledger.Transaction {
		return &ledger.Transaction{
			ID:           id,
			ActivityDate: date,
			Code:         code,
			Instrument:   instrument,
			Quantity:     quantity,
			Price:        price,
			Amount:       amount,
			Description:  description,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		asOf = day(2025, 1, 31)

		trxs = []*ledger.Transaction{
			trx(1, day(2024, 11, 20), "Buy", "AAPL", 10, 100, -1000, ""),
			trx(2, day(2024, 12, 2), "Buy", "MSFT", 5, 300, -1500, ""),
			trx(3, day(2024, 12, 15), "Sell", "AAPL", 4, 120, 480, ""),
			trx(4, day(2024, 12, 20), "BTO", "TOST", 2, 1.25, -250, "TOST 1/17/2025 Call $40.00"),
			trx(5, day(2025, 1, 2), "CDIV", "MSFT", 0, 0, 15, "MSFT Cash Div: R/D 2024-12-16 P/D 2025-01-02"),
			trx(6, day(2025, 1, 17), "OEXP", "TOST", 2, 0, 0, "TOST 1/17/2025 Call $40.00"),
			trx(7, day(2025, 1, 5), "ACH", "", 0, 0, 5000, "ACH deposit"),
		}

		prices = marketdata.NewSeries(map[string][]marketdata.Point{
			"AAPL": {
				{Date: day(2024, 11, 1), Close: 100},
				{Date: day(2024, 11, 29), Close: 110},
				{Date: day(2024, 12, 31), Close: 121},
				{Date: day(2025, 1, 31), Close: 130},
			},
			"MSFT": {
				{Date: day(2024, 12, 2), Close: 300},
				{Date: day(2024, 12, 31), Close: 310},
				{Date: day(2025, 1, 31), Close: 320},
			},
		})
	})

	It("derives lots, gains, and asset values in one run", func() {
		result, err := pipeline.Run(ctx, trxs, prices, asOf)
		Expect(err).To(BeNil())

		Expect(result.RunID).NotTo(BeEmpty())
		Expect(result.Fingerprint).NotTo(BeEmpty())

		Expect(result.Equities.Lots).To(HaveLen(2))
		Expect(result.Equities.Gains).To(HaveLen(1))
		Expect(result.Equities.Gains[0].Gain).To(Equal(80.0))

		Expect(result.Options.Lots).To(HaveLen(1))
		Expect(result.Options.Gains).To(HaveLen(1))
		Expect(result.Options.Gains[0].Gain).To(Equal(-250.0))

		// AAPL: Nov 2024 through Jan 2025; MSFT: Dec 2024 through Jan 2025
		Expect(result.AssetValues).To(HaveLen(5))
		Expect(result.AssetValues[0].Instrument).To(Equal("AAPL"))
		Expect(result.AssetValues[3].Instrument).To(Equal("MSFT"))
	})

	It("excludes cash and option rows from asset values", func() {
		result, err := pipeline.Run(ctx, trxs, prices, asOf)
		Expect(err).To(BeNil())

		for _, record := range result.AssetValues {
			Expect(record.Instrument).To(BeElementOf("AAPL", "MSFT"))
		}
	})

	It("summarizes compounded returns per instrument", func() {
		result, err := pipeline.Run(ctx, trxs, prices, asOf)
		Expect(err).To(BeNil())

		Expect(result.Returns).To(HaveLen(2))
		Expect(result.Returns[0].Instrument).To(Equal("AAPL"))
		Expect(result.Returns[1].Instrument).To(Equal("MSFT"))

		aapl := []*dietz.AssetValueRecord{}
		for _, record := range result.AssetValues {
			if record.Instrument == "AAPL" {
				aapl = append(aapl, record)
			}
		}
		Expect(result.Returns[0].Linked).To(HaveLen(len(aapl)))
		Expect(result.Returns[0].LifetimeReturn).To(Equal(dietz.LifetimeReturn(aapl)))
		Expect(result.Returns[0].LifetimeReturn).To(BeNumerically(">", 0))
	})

	It("extends the period span through a trailing dividend month", func() {
		closedThenDividend := []*ledger.Transaction{
			trx(1, day(2024, 11, 5), "Buy", "KO", 10, 60, -600, ""),
			trx(2, day(2024, 11, 25), "Sell", "KO", 10, 62, 620, ""),
			trx(3, day(2025, 1, 2), "CDIV", "KO", 0, 0, 12, "KO Cash Div: R/D 2024-12-10 P/D 2025-01-02"),
		}
		koPrices := marketdata.NewSeries(map[string][]marketdata.Point{
			"KO": {
				{Date: day(2024, 11, 1), Close: 60},
				{Date: day(2024, 11, 29), Close: 62},
				{Date: day(2024, 12, 31), Close: 63},
			},
		})

		result, err := pipeline.Run(ctx, closedThenDividend, koPrices, asOf)
		Expect(err).To(BeNil())

		// November trades plus the December record-date month.
		Expect(result.AssetValues).To(HaveLen(2))
		Expect(result.AssetValues[1].PeriodEnd.Month()).To(Equal(time.December))
		Expect(result.AssetValues[1].SharesEOM).To(Equal(0.0))
		Expect(result.AssetValues[1].MDReturn).To(BeNil())
	})

	It("is idempotent across repeated runs", func() {
		first, err := pipeline.Run(ctx, trxs, prices, asOf)
		Expect(err).To(BeNil())
		second, err := pipeline.Run(ctx, trxs, prices, asOf)
		Expect(err).To(BeNil())

		Expect(second.Fingerprint).To(Equal(first.Fingerprint))

		Expect(second.Equities.Lots).To(HaveLen(len(first.Equities.Lots)))
		for idx := range first.Equities.Lots {
			Expect(*second.Equities.Lots[idx]).To(Equal(*first.Equities.Lots[idx]))
		}
		Expect(second.Options.Lots).To(HaveLen(len(first.Options.Lots)))
		for idx := range first.Options.Lots {
			Expect(*second.Options.Lots[idx]).To(Equal(*first.Options.Lots[idx]))
		}
		Expect(second.AssetValues).To(HaveLen(len(first.AssetValues)))
		for idx := range first.AssetValues {
			Expect(second.AssetValues[idx].Instrument).To(Equal(first.AssetValues[idx].Instrument))
			Expect(second.AssetValues[idx].PnL).To(Equal(first.AssetValues[idx].PnL))
			if first.AssetValues[idx].MDReturn == nil {
				Expect(second.AssetValues[idx].MDReturn).To(BeNil())
			} else {
				Expect(*second.AssetValues[idx].MDReturn).To(Equal(*first.AssetValues[idx].MDReturn))
			}
		}
	})

	It("aborts the run on a malformed option description", func() {
		bad := append([]*ledger.Transaction{}, trxs...)
		bad = append(bad, trx(8, day(2025, 1, 10), "BTO", "TOST", 1, 1, -100, "garbled"))

		_, err := pipeline.Run(ctx, bad, prices, asOf)
		Expect(err).To(MatchError(ledger.ErrOptionAttributes))
	})

	It("surfaces engine diagnostics without aborting", func() {
		withUnknown := append([]*ledger.Transaction{}, trxs...)
		withUnknown = append(withUnknown, trx(9, day(2025, 1, 10), "MRGC", "AAPL", 0, 0, 0, ""))

		result, err := pipeline.Run(ctx, withUnknown, prices, asOf)
		Expect(err).To(BeNil())
		Expect(result.Diagnostics).To(HaveLen(1))
	})
})
