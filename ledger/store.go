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
	"context"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"

	"github.com/navledger/navledger/database"
)

// LoadTransactions reads the full transaction ledger in activity-date order.
// The ledger is append-only input; this package never writes to it.
func LoadTransactions(ctx context.Context) ([]*Transaction, error) {
	stmt := &pgsql.SelectStatement{}
	for _, field := range []string{"id", "activity_date", "trans_code", "instrument", "description"} {
		stmt.Select(pgx.Identifier{field}.Sanitize())
	}
	// NULL quantities/prices occur on cash rows; treat them as zero.
	for _, field := range []string{"coalesce(quantity, 0)", "coalesce(price, 0)", "coalesce(amount, 0)"} {
		stmt.Select(field)
	}
	stmt.From(pgx.Identifier{"transactions"}.Sanitize())
	stmt.Order("activity_date, id")
	sql, args := pgsql.Build(stmt)

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		log.Error().Stack().Err(err).Str("Query", sql).Msg("could not load transactions")
		return nil, err
	}

	transactions := make([]*Transaction, 0, 1000)
	for rows.Next() {
		t := &Transaction{}
		err := rows.Scan(&t.ID, &t.ActivityDate, &t.Code, &t.Instrument,
			&t.Description, &t.Quantity, &t.Price, &t.Amount)
		if err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Error().Stack().Err(err).Msg("could not scan transaction row")
			return nil, err
		}
		transactions = append(transactions, t)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	log.Debug().Int("NumTransactions", len(transactions)).Msg("loaded transaction ledger")
	return transactions, nil
}
