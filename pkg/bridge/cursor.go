// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"github.com/apache/arrow/go/v12/arrow"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
)

// attrCursor walks an attribute record in row order, handing the caller
// every contiguous run of rows sharing one parent id (spec section 4.5:
// "for each root row the encoder advances the cursor while parent_id ==
// current_root_id"). It assumes the record's rows are already grouped by
// parent, the invariant every decoder in this package maintains.
type attrCursor struct {
	rec    arrow.Record
	absIDs []int64
	pos    int
}

func newAttrCursor(rec arrow.Record) (*attrCursor, error) {
	if rec == nil {
		return &attrCursor{}, nil
	}
	abs, err := batch.DecodeDeltaParentIDs(rec)
	if err != nil {
		return nil, err
	}
	return &attrCursor{rec: rec, absIDs: abs}, nil
}

// rowsFor returns the row indices whose parent id equals rootID, advancing
// the cursor past them. Returns nil if the cursor is exhausted or the next
// run belongs to a different parent.
func (c *attrCursor) rowsFor(rootID int64) []int {
	if c.rec == nil {
		return nil
	}
	var rows []int
	for c.pos < len(c.absIDs) && c.absIDs[c.pos] == rootID {
		rows = append(rows, c.pos)
		c.pos++
	}
	return rows
}
