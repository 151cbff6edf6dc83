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

package ledger

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrOptionAttributes = errors.New("could not parse option attributes from description")
	ErrZeroQuantity     = errors.New("transaction quantity must be non-zero for this code")
)

// Option descriptions look like "TOST 1/17/2025 Call $40.00". Dividend
// descriptions carry "R/D 12/16/2024 P/D 01/02/2025" markers.
var (
	optionDescRe   = regexp.MustCompile(`(?i)(\d{1,2}/\d{1,2}/\d{4})\s+(Call|Put)\s+\$?([0-9,]+(?:\.[0-9]+)?)`)
	recordDateRe   = regexp.MustCompile(`(?i)R/D:?\s*([0-9]{1,4}[-/][0-9]{1,2}[-/][0-9]{1,4})`)
	paymentDateRe  = regexp.MustCompile(`(?i)P/D:?\s*([0-9]{1,4}[-/][0-9]{1,2}[-/][0-9]{1,4})`)
	flexDateLayout = []string{"1/2/2006", "01/02/2006", "2006-01-02", "1/2/06"}
)

func parseFlexibleDate(s string) (time.Time, bool) {
	for _, layout := range flexDateLayout {
		if dt, err := time.Parse(layout, s); err == nil {
			return dt, true
		}
	}
	return time.Time{}, false
}

func parseOptionAttributes(description string) (*OptionAttributes, error) {
	m := optionDescRe.FindStringSubmatch(description)
	if m == nil {
		return nil, ErrOptionAttributes
	}

	expiration, ok := parseFlexibleDate(m[1])
	if !ok {
		return nil, ErrOptionAttributes
	}

	strike, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
	if err != nil {
		return nil, ErrOptionAttributes
	}

	optionType := CallOption
	if strings.EqualFold(m[2], "Put") {
		optionType = PutOption
	}

	return &OptionAttributes{
		Expiration: expiration,
		Type:       optionType,
		Strike:     strike,
	}, nil
}

func parseDividendDates(description string) *DividendDates {
	dates := &DividendDates{}
	if m := recordDateRe.FindStringSubmatch(description); m != nil {
		if dt, ok := parseFlexibleDate(m[1]); ok {
			dates.RecordDate = dt
		}
	}
	if m := paymentDateRe.FindStringSubmatch(description); m != nil {
		if dt, ok := parseFlexibleDate(m[1]); ok {
			dates.PaymentDate = dt
		}
	}
	if dates.RecordDate.IsZero() && dates.PaymentDate.IsZero() {
		return nil
	}
	return dates
}

// monthBounds returns the first and last day of the calendar month holding dt.
func monthBounds(dt time.Time) (time.Time, time.Time) {
	start := time.Date(dt.Year(), dt.Month(), 1, 0, 0, 0, 0, dt.Location())
	end := start.AddDate(0, 1, -1)
	return start, end
}

func adjustCashFlowSign(kind string, amount float64) float64 {
	// Cash flow is stored from the capital-deployed perspective: a buy
	// deploys capital (positive), a sell returns it (negative).
	switch kind {
	case BuyTransaction:
		return math.Abs(amount)
	case SellTransaction:
		return -math.Abs(amount)
	}
	return amount
}

// Enrich derives the full view of a transaction that the period generator,
// weighted cash-flow calculator, and FIFO engines consume. It is a pure
// function of the transaction; malformed option descriptions are the only
// fatal condition.
func Enrich(trx *Transaction) (*EnrichedTransaction, error) {
	kind, class := Classify(trx.Code)

	enriched := &EnrichedTransaction{
		Transaction: *trx,
		Kind:        kind,
		Class:       class,
		Corrected:   trx.ActivityDate,
		SourceID:    trx.computeSourceID(),
	}

	switch class {
	case ClassOption:
		attrs, err := parseOptionAttributes(trx.Description)
		if err != nil {
			log.Error().Stack().Err(err).Int64("TransactionID", trx.ID).Str("Description", trx.Description).Msg("option transaction with unparseable description")
			return nil, err
		}
		enriched.Option = attrs
	case ClassDividend:
		enriched.Dividend = parseDividendDates(trx.Description)
		if enriched.Dividend != nil && !enriched.Dividend.RecordDate.IsZero() {
			enriched.Corrected = enriched.Dividend.RecordDate
		}
	}

	enriched.CashFlow = adjustCashFlowSign(kind, trx.Amount)
	enriched.PeriodStart, enriched.PeriodEnd = monthBounds(enriched.Corrected)

	// W_i = (T - t_i + 1) / T where t_i is the day-of-month of the
	// corrected activity date and T is the number of days in the period.
	totalDays := enriched.PeriodEnd.Day()
	dayOfMonth := enriched.Corrected.Day()
	enriched.TimeWeight = float64(totalDays-dayOfMonth+1) / float64(totalDays)

	return enriched, nil
}

// EnrichAll enriches a batch, aborting on the first fatal row. The returned
// slice preserves input order.
func EnrichAll(trxs []*Transaction) ([]*EnrichedTransaction, error) {
	enriched := make([]*EnrichedTransaction, 0, len(trxs))
	for _, trx := range trxs {
		e, err := Enrich(trx)
		if err != nil {
			return nil, err
		}
		enriched = append(enriched, e)
	}
	return enriched, nil
}
