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

package dietz_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/navledger/navledger/dietz"
	"github.com/navledger/navledger/ledger"
	"github.com/navledger/navledger/marketdata"
)

var _ = Describe("Aggregate", func() {
	var (
		now    time.Time
		prices *marketdata.Series
	)

	day := func(year int, month time.Month, dom int) time.Time {
		return time.Date(year, month, dom, 0, 0, 0, 0, time.UTC)
	}

	BeforeEach(func() {
		now = day(2025, 3, 15)
		prices = marketdata.NewSeries(map[string][]marketdata.Point{
			"AAPL": {
				{Date: day(2024, 11, 1), Close: 100},
				{Date: day(2024, 11, 29), Close: 110},
				{Date: day(2024, 12, 31), Close: 121},
				{Date: day(2025, 1, 31), Close: 130},
			},
		})
	})

	Context("over an open-hold-close lifecycle", func() {
		var records []*dietz.AssetValueRecord

		BeforeEach(func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day(2024, 11, 20), "Buy", "AAPL", 10, 100, -1000, ""),
				mustEnrich(2, day(2025, 1, 10), "Sell", "AAPL", 10, 130, 1300, ""),
			}
			periods := dietz.PeriodsFor(trxs, now)
			flows := dietz.CashFlows(trxs)
			records = dietz.Aggregate("AAPL", periods, trxs, flows, prices)
		})

		It("produces one record per period", func() {
			Expect(records).To(HaveLen(3))
		})

		It("uses deployed capital as the denominator in the opening month", func() {
			opening := records[0]
			Expect(opening.SharesBOM).To(Equal(0.0))
			Expect(opening.SharesEOM).To(Equal(10.0))
			Expect(opening.NavEOM).To(Equal(1100.0))
			Expect(opening.NetCashFlow).To(Equal(1000.0))
			Expect(opening.AverageCapital).To(Equal(1000.0))
			Expect(opening.PnL).To(Equal(100.0))
			Expect(opening.MDReturn).NotTo(BeNil())
			Expect(*opening.MDReturn).To(Equal(0.1))
		})

		It("uses opening NAV plus weighted flows in an ongoing month", func() {
			ongoing := records[1]
			Expect(ongoing.SharesBOM).To(Equal(10.0))
			Expect(ongoing.SharesEOM).To(Equal(10.0))
			// BOM price rolls forward from the prior period's close
			Expect(ongoing.PriceBOM).To(Equal(110.0))
			Expect(ongoing.NavBOM).To(Equal(1100.0))
			Expect(ongoing.NavEOM).To(Equal(1210.0))
			Expect(ongoing.NetCashFlow).To(Equal(0.0))
			Expect(ongoing.AverageCapital).To(Equal(1100.0))
			Expect(ongoing.PnL).To(Equal(110.0))
			Expect(*ongoing.MDReturn).To(Equal(0.1))
		})

		It("uses the returned capital as the denominator in the closing month", func() {
			closing := records[2]
			Expect(closing.SharesEOM).To(Equal(0.0))
			Expect(closing.NavEOM).To(Equal(0.0))
			Expect(closing.NetCashFlow).To(Equal(-1300.0))
			Expect(closing.AverageCapital).To(Equal(1300.0))
			Expect(closing.PnL).To(Equal(90.0))
			Expect(*closing.MDReturn).To(Equal(math.Round(90.0/1300.0*1e6) / 1e6))
		})
	})

	Context("share count adjustments", func() {
		It("counts received shares and split shares as additions", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day(2024, 11, 5), "Buy", "AAPL", 10, 100, -1000, ""),
				mustEnrich(2, day(2024, 11, 10), "REC", "AAPL", 2, 0, 0, ""),
				mustEnrich(3, day(2024, 11, 20), "SPL", "AAPL", 12, 0, 0, ""),
			}
			periods := dietz.PeriodsFor(trxs, now)
			flows := dietz.CashFlows(trxs)
			records := dietz.Aggregate("AAPL", periods, trxs, flows, prices)

			Expect(records[0].SharesEOM).To(Equal(24.0))
		})
	})

	Context("missing prices", func() {
		It("leaves the return undefined when no close exists for the period", func() {
			empty := marketdata.NewSeries(nil)
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day(2024, 11, 20), "Buy", "AAPL", 10, 100, -1000, ""),
			}
			periods := dietz.PeriodsFor(trxs, now)[:1]
			flows := dietz.CashFlows(trxs)
			records := dietz.Aggregate("AAPL", periods, trxs, flows, empty)

			Expect(records).To(HaveLen(1))
			Expect(math.IsNaN(records[0].PriceEOM)).To(BeTrue())
			Expect(math.IsNaN(records[0].NavEOM)).To(BeTrue())
			Expect(records[0].MDReturn).To(BeNil())
		})
	})

	Context("idle capital", func() {
		It("leaves the return undefined when average capital is zero", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day(2024, 11, 20), "CDIV", "AAPL", 0, 0, 5, "AAPL Cash Div: R/D 2024-11-20"),
			}
			periods := dietz.PeriodsFor(trxs, now)
			records := dietz.Aggregate("AAPL", periods, trxs, map[dietz.FlowKey]dietz.FlowTotals{}, prices)

			Expect(records).To(HaveLen(1))
			Expect(records[0].AverageCapital).To(Equal(0.0))
			Expect(records[0].MDReturn).To(BeNil())
		})
	})
})

var _ = Describe("Analytics", func() {
	ptr := func(x float64) *float64 { return &x }

	It("links returns geometrically and resets on full close", func() {
		records := []*dietz.AssetValueRecord{
			{SharesEOM: 10, MDReturn: ptr(0.1)},
			{SharesEOM: 10, MDReturn: ptr(0.1)},
			{SharesEOM: 0, MDReturn: ptr(0.05)},
			{SharesEOM: 5, MDReturn: ptr(0.2)},
		}
		linked := dietz.LinkedReturns(records)

		Expect(linked[0]).To(BeNumerically("~", 0.1, 1e-12))
		Expect(linked[1]).To(BeNumerically("~", 0.21, 1e-12))
		Expect(linked[2]).To(Equal(0.0))
		Expect(linked[3]).To(BeNumerically("~", 0.2, 1e-12))
	})

	It("compounds every defined return for the lifetime figure", func() {
		records := []*dietz.AssetValueRecord{
			{SharesEOM: 10, MDReturn: ptr(0.1)},
			{SharesEOM: 10, MDReturn: nil},
			{SharesEOM: 0, MDReturn: ptr(-0.05)},
		}
		Expect(dietz.LifetimeReturn(records)).To(BeNumerically("~", 1.1*0.95-1, 1e-12))
	})

	It("returns NaN sharpe with fewer than two defined returns", func() {
		records := []*dietz.AssetValueRecord{{SharesEOM: 10, MDReturn: ptr(0.1)}}
		Expect(math.IsNaN(dietz.SharpeRatio(records, 0.02))).To(BeTrue())
	})

	It("computes a positive sharpe for consistently positive returns", func() {
		records := []*dietz.AssetValueRecord{
			{SharesEOM: 10, MDReturn: ptr(0.02)},
			{SharesEOM: 10, MDReturn: ptr(0.03)},
			{SharesEOM: 10, MDReturn: ptr(0.025)},
		}
		Expect(dietz.SharpeRatio(records, 0.0)).To(BeNumerically(">", 0))
	})
})
