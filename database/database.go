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

// Package database manages the shared postgres connection pool. Tests swap
// the pool for a pgxmock connection via SetPool.
package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// PgxIface is the slice of the pgx pool the rest of the code depends on.
type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var ErrNotConnected = errors.New("database pool is not connected")

var pool PgxIface

// Connect establishes the postgres connection pool from database.url.
func Connect(ctx context.Context) error {
	p, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		return err
	}
	if err := p.Ping(ctx); err != nil {
		return err
	}
	pool = p
	return nil
}

// SetPool replaces the active pool; used by tests to install a mock.
func SetPool(myPool PgxIface) {
	pool = myPool
}

// Trx begins a new database transaction on the shared pool.
func Trx(ctx context.Context) (pgx.Tx, error) {
	if pool == nil {
		log.Error().Stack().Msg("database pool is not connected")
		return nil, ErrNotConnected
	}
	return pool.Begin(ctx)
}
