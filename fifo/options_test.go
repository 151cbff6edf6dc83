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

package fifo_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/navledger/navledger/fifo"
	"github.com/navledger/navledger/ledger"
)

var _ = Describe("Option engine", func() {
	var day time.Time

	BeforeEach(func() {
		day = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	})

	Context("long positions", func() {
		It("opens a long lot with positive contracts and cost", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day, "BTO", "TOST", 2, 1.25, -250, "TOST 1/17/2025 Call $40.00"),
			}
			result := fifo.ProcessOptions(trxs)

			Expect(result.Lots).To(HaveLen(1))
			lot := result.Lots[0]
			Expect(lot.OpenContracts).To(Equal(2.0))
			Expect(lot.CostBasis).To(Equal(250.0))
			Expect(lot.AvgCost).To(Equal(125.0))
		})

		It("realizes gain on sell to close", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day, "BTO", "TOST", 2, 1.25, -250, "TOST 1/17/2025 Call $40.00"),
				mustEnrich(2, day.AddDate(0, 0, 10), "STC", "TOST", 1, 2.00, 200, "TOST 1/17/2025 Call $40.00"),
			}
			result := fifo.ProcessOptions(trxs)

			Expect(result.Gains).To(HaveLen(1))
			gain := result.Gains[0]
			Expect(gain.Quantity).To(Equal(1.0))
			Expect(gain.AllocatedCost).To(Equal(125.0))
			Expect(gain.Proceeds).To(Equal(200.0))
			Expect(gain.Gain).To(Equal(75.0))

			Expect(result.Lots[0].OpenContracts).To(Equal(1.0))
			Expect(result.Lots[0].CostBasis).To(Equal(125.0))
		})

		It("realizes the full premium as a loss on worthless expiration", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day, "BTO", "TOST", 5, 0.02, -10, "TOST 1/17/2025 Call $40.00"),
				mustEnrich(2, day.AddDate(0, 2, 16), "OEXP", "TOST", 5, 0, 0, "TOST 1/17/2025 Call $40.00"),
			}
			result := fifo.ProcessOptions(trxs)

			Expect(result.Gains).To(HaveLen(1))
			gain := result.Gains[0]
			Expect(gain.Quantity).To(Equal(5.0))
			Expect(gain.Proceeds).To(Equal(0.0))
			Expect(gain.Gain).To(Equal(-10.0))

			Expect(result.Lots[0].OpenContracts).To(Equal(0.0))
			Expect(result.Lots[0].CostBasis).To(Equal(0.0))
		})
	})

	Context("short positions", func() {
		It("opens a short lot with negative contracts and a credit basis", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day, "STO", "SPX", 3, 2.00, 600, "SPX 3/21/2025 Put $4,100.00"),
			}
			result := fifo.ProcessOptions(trxs)

			Expect(result.Lots).To(HaveLen(1))
			lot := result.Lots[0]
			Expect(lot.OpenContracts).To(Equal(-3.0))
			Expect(lot.CostBasis).To(Equal(-600.0))
			Expect(lot.AvgCost).To(Equal(200.0))
		})

		It("realizes gain on buy to close against the credit", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day, "STO", "SPX", 3, 2.00, 600, "SPX 3/21/2025 Put $4,100.00"),
				mustEnrich(2, day.AddDate(0, 0, 20), "BTC", "SPX", 2, 1.50, -300, "SPX 3/21/2025 Put $4,100.00"),
			}
			result := fifo.ProcessOptions(trxs)

			Expect(result.Gains).To(HaveLen(1))
			gain := result.Gains[0]
			Expect(gain.Quantity).To(Equal(2.0))
			Expect(gain.AllocatedCost).To(Equal(-400.0))
			Expect(gain.Proceeds).To(Equal(-300.0))
			Expect(gain.Gain).To(Equal(100.0))

			lot := result.Lots[0]
			Expect(lot.OpenContracts).To(Equal(-1.0))
			Expect(lot.CostBasis).To(Equal(-200.0))
		})

		It("keeps the whole credit when a short expires worthless", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day, "STO", "SPX", 3, 2.00, 600, "SPX 3/21/2025 Put $4,100.00"),
				mustEnrich(2, day.AddDate(0, 4, 20), "OEXP", "SPX", 3, 0, 0, "SPX 3/21/2025 Put $4,100.00"),
			}
			result := fifo.ProcessOptions(trxs)

			Expect(result.Gains).To(HaveLen(1))
			gain := result.Gains[0]
			Expect(gain.Quantity).To(Equal(3.0))
			Expect(gain.Gain).To(Equal(600.0))
		})
	})

	Context("contract isolation", func() {
		It("never offsets distinct contracts on the same underlying", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day, "BTO", "TOST", 1, 1.00, -100, "TOST 1/17/2025 Call $40.00"),
				mustEnrich(2, day, "BTO", "TOST", 1, 1.00, -100, "TOST 1/17/2025 Call $45.00"),
				mustEnrich(3, day.AddDate(0, 0, 5), "STC", "TOST", 1, 1.50, 150, "TOST 1/17/2025 Call $45.00"),
			}
			result := fifo.ProcessOptions(trxs)

			Expect(result.Gains).To(HaveLen(1))
			Expect(result.Gains[0].ContractKey).To(ContainSubstring("$45.00"))

			// the $40 strike lot is untouched
			Expect(result.Lots).To(HaveLen(2))
			for _, lot := range result.Lots {
				if lot.Key.Strike == 40.0 {
					Expect(lot.OpenContracts).To(Equal(1.0))
				}
			}
		})
	})

	Context("overconsumption", func() {
		It("reports a shortfall when closing more than is open", func() {
			trxs := []*ledger.EnrichedTransaction{
				mustEnrich(1, day, "BTO", "TOST", 1, 1.00, -100, "TOST 1/17/2025 Call $40.00"),
				mustEnrich(2, day.AddDate(0, 0, 5), "STC", "TOST", 3, 1.50, 450, "TOST 1/17/2025 Call $40.00"),
			}
			result := fifo.ProcessOptions(trxs)

			Expect(result.Gains).To(HaveLen(1))
			Expect(result.Gains[0].Quantity).To(Equal(1.0))
			Expect(result.Diagnostics).To(HaveLen(1))
			Expect(result.Diagnostics[0].Kind).To(Equal(fifo.Overconsumption))
			Expect(result.Diagnostics[0].Shortfall).To(Equal(2.0))
		})
	})
})
