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

// Package marketdata holds daily close prices and answers period boundary
// price queries for the asset value aggregation.
package marketdata

import (
	"sort"
	"time"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// Point is one daily close observation.
type Point struct {
	Date  time.Time
	Close float64
}

// Series indexes close prices by instrument, each instrument's points kept in
// ascending date order for binary search.
type Series struct {
	points map[string][]Point
}

// NewSeries builds a Series from an unordered set of points.
func NewSeries(points map[string][]Point) *Series {
	series := &Series{points: make(map[string][]Point, len(points))}
	for instrument, pts := range points {
		sorted := make([]Point, len(pts))
		copy(sorted, pts)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Date.Before(sorted[j].Date)
		})
		series.points[instrument] = sorted
	}
	return series
}

// Add appends a point, preserving date order.
func (s *Series) Add(instrument string, point Point) {
	if s.points == nil {
		s.points = make(map[string][]Point)
	}
	pts := s.points[instrument]
	idx := sort.Search(len(pts), func(i int) bool {
		return !pts[i].Date.Before(point.Date)
	})
	pts = append(pts, Point{})
	copy(pts[idx+1:], pts[idx:])
	pts[idx] = point
	s.points[instrument] = pts
}

// Instruments returns the sorted list of instruments with at least one point.
func (s *Series) Instruments() []string {
	instruments := make([]string, 0, len(s.points))
	for instrument := range s.points {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)
	return instruments
}

// FirstCloseInRange returns the earliest close on or after start and on or
// before end.
func (s *Series) FirstCloseInRange(instrument string, start, end time.Time) (float64, bool) {
	pts := s.points[instrument]
	idx := sort.Search(len(pts), func(i int) bool {
		return !pts[i].Date.Before(start)
	})
	if idx >= len(pts) || pts[idx].Date.After(end) {
		return 0, false
	}
	return pts[idx].Close, true
}

// LastCloseInRange returns the latest close on or before end and on or after
// start.
func (s *Series) LastCloseInRange(instrument string, start, end time.Time) (float64, bool) {
	pts := s.points[instrument]
	idx := sort.Search(len(pts), func(i int) bool {
		return pts[i].Date.After(end)
	})
	if idx == 0 || pts[idx-1].Date.Before(start) {
		return 0, false
	}
	return pts[idx-1].Close, true
}

// DataFrame exports one instrument's series as a two column (date, close)
// dataframe for downstream analytics.
func (s *Series) DataFrame(instrument string) *dataframe.DataFrame {
	pts := s.points[instrument]
	dates := dataframe.NewSeriesTime("date", &dataframe.SeriesInit{Capacity: len(pts)})
	closes := dataframe.NewSeriesFloat64(instrument, &dataframe.SeriesInit{Capacity: len(pts)})
	for _, pt := range pts {
		dates.Append(pt.Date)
		closes.Append(pt.Close)
	}
	return dataframe.NewDataFrame(dates, closes)
}
