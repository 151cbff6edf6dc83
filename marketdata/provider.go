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

package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/navledger/navledger/observability/opentelemetry"
)

var tiingoAPI = "https://api.tiingo.com"

type tiingoJSONResponse struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
}

// Tiingo fetches end-of-day close prices from the tiingo REST API.
type Tiingo struct {
	apikey string
}

// NewTiingo creates a tiingo provider with the given API token.
func NewTiingo(key string) *Tiingo {
	return &Tiingo{apikey: key}
}

// FetchDailyCloses downloads adjusted daily closes for each instrument over
// [begin, end] and returns them as a Series. Instruments that fail to
// download are logged and skipped; an error is returned only when every
// instrument fails.
func (t *Tiingo) FetchDailyCloses(ctx context.Context, instruments []string, begin, end time.Time) (*Series, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.FetchDailyCloses")
	defer span.End()

	span.SetAttributes(
		attribute.KeyValue{Key: "NumInstruments", Value: attribute.IntValue(len(instruments))},
	)

	series := NewSeries(nil)
	var failures int
	for _, instrument := range instruments {
		points, err := t.fetchInstrument(ctx, strings.ToUpper(instrument), begin, end)
		if err != nil {
			log.Warn().Err(err).Str("Instrument", instrument).Msg("cannot download instrument prices")
			failures++
			continue
		}
		for _, pt := range points {
			series.Add(instrument, pt)
		}
	}

	if failures > 0 && failures == len(instruments) {
		msg := "all price downloads failed"
		span.SetStatus(codes.Error, msg)
		return nil, errors.New(msg)
	}
	return series, nil
}

func (t *Tiingo) fetchInstrument(ctx context.Context, symbol string, begin, end time.Time) ([]Point, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.fetchInstrument")
	defer span.End()

	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	url := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&resampleFreq=daily&token=%s",
		tiingoAPI, symbol, begin.Format("2006-01-02"), end.Format("2006-01-02"), t.apikey)

	span.SetAttributes(
		attribute.KeyValue{Key: "Symbol", Value: attribute.StringValue(symbol)},
	)

	resp, err := http.Get(url)
	if err != nil {
		span.RecordError(err)
		msg := "tiingo http request failed"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		msg := "could not read tiingo body"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, err
	}

	if resp.StatusCode >= 400 {
		msg := "tiingo returned invalid response code"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Bytes("Body", body).Msg(msg)
		return nil, fmt.Errorf("HTTP request returned invalid status code: %d", resp.StatusCode)
	}

	jsonResp := []tiingoJSONResponse{}
	if err := json.Unmarshal(body, &jsonResp); err != nil {
		span.RecordError(err)
		msg := "could not unmarshal json"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Bytes("Body", body).Msg(msg)
		return nil, err
	}

	tz, err := time.LoadLocation("America/New_York") // New York is the reference time
	if err != nil {
		subLog.Error().Err(err).Msg("could not load nyc timezone")
		return nil, err
	}

	points := make([]Point, 0, len(jsonResp))
	for _, row := range jsonResp {
		dtParts := strings.Split(row.Date, "T")
		dt, err := time.ParseInLocation("2006-01-02", dtParts[0], tz)
		if err != nil {
			span.RecordError(err)
			subLog.Error().Err(err).Str("DateStr", row.Date).Msg("cannot parse date string")
			return nil, err
		}
		close := row.AdjClose
		if close == 0 {
			close = row.Close
		}
		points = append(points, Point{Date: dt, Close: close})
	}
	return points, nil
}
