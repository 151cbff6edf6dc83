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
	_ "embed"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

//go:embed codes.toml
var rawCodeTable []byte

type codeEntry struct {
	Raw   string `toml:"raw"`
	Kind  string `toml:"kind"`
	Class Class  `toml:"class"`
}

type codeTable struct {
	Code []codeEntry `toml:"code"`
}

var codeMap map[string]codeEntry

func init() {
	var table codeTable
	if err := toml.Unmarshal(rawCodeTable, &table); err != nil {
		log.Panic().Err(err).Msg("could not parse embedded transaction code table")
	}
	codeMap = make(map[string]codeEntry, len(table.Code))
	for _, entry := range table.Code {
		codeMap[entry.Raw] = entry
	}
}

// Classify maps a raw broker code to its canonical kind and engine class.
// Unknown codes are not an error here; the FIFO engines report them as
// classification gaps when they are asked to apply one.
func Classify(rawCode string) (kind string, class Class) {
	if entry, ok := codeMap[rawCode]; ok {
		return entry.Kind, entry.Class
	}
	return OtherTransaction, ClassUnknown
}
