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

	"gonum.org/v1/gonum/stat"
)

// monthsPerYear annualizes monthly return series.
const monthsPerYear = 12

// LinkedReturns chains each period's Modified Dietz return geometrically,
// resetting to zero whenever the position fully closes so a later re-entry
// starts a fresh compounding chain. Periods with an undefined return carry
// the chain forward unchanged.
func LinkedReturns(records []*AssetValueRecord) []float64 {
	linked := make([]float64, len(records))
	cumulative := 1.0
	for idx, record := range records {
		if record.SharesEOM == 0 {
			cumulative = 1.0
			linked[idx] = 0
			continue
		}
		if record.MDReturn != nil {
			cumulative *= 1 + *record.MDReturn
		}
		linked[idx] = cumulative - 1
	}
	return linked
}

// LifetimeReturn compounds every defined period return without resets,
// giving the life-to-date return for the instrument.
func LifetimeReturn(records []*AssetValueRecord) float64 {
	cumulative := 1.0
	for _, record := range records {
		if record.MDReturn != nil {
			cumulative *= 1 + *record.MDReturn
		}
	}
	return cumulative - 1
}

// ReturnSummary rolls one instrument's asset value records up into the
// compounded return measures reported alongside them.
type ReturnSummary struct {
	Instrument     string
	Linked         []float64
	LifetimeReturn float64
	SharpeRatio    float64
}

// Summarize computes the linked return chain, life-to-date return, and
// annualized sharpe ratio for one instrument's records. Records must be in
// period order.
func Summarize(instrument string, records []*AssetValueRecord, annualRiskFree float64) *ReturnSummary {
	return &ReturnSummary{
		Instrument:     instrument,
		Linked:         LinkedReturns(records),
		LifetimeReturn: LifetimeReturn(records),
		SharpeRatio:    SharpeRatio(records, annualRiskFree),
	}
}

// SharpeRatio computes the annualized sharpe ratio of the monthly Modified
// Dietz return series against an annual risk-free rate. Returns NaN when
// fewer than two periods have defined returns.
func SharpeRatio(records []*AssetValueRecord, annualRiskFree float64) float64 {
	returns := make([]float64, 0, len(records))
	for _, record := range records {
		if record.MDReturn != nil {
			returns = append(returns, *record.MDReturn)
		}
	}
	if len(returns) < 2 {
		return math.NaN()
	}

	monthlyRiskFree := math.Pow(1+annualRiskFree, 1.0/monthsPerYear) - 1
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return math.NaN()
	}
	return (mean - monthlyRiskFree) / std * math.Sqrt(monthsPerYear)
}
