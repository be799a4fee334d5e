package catalog

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datadex/pkg/types"
)

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(n int) *int              { return &n }

// TestBuildRangeCombinations drives all sixteen presence combinations of
// start/end/count/offset through both query targets and checks the appended
// clauses, placeholder numbering, and argument order.
func TestBuildRangeCombinations(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	for mask := 0; mask < 16; mask++ {
		mask := mask
		t.Run(fmt.Sprintf("mask_%04b", mask), func(t *testing.T) {
			params := &types.RangeParams{}
			var wantArgs []any
			if mask&1 != 0 {
				params.Start = timePtr(start)
				wantArgs = append(wantArgs, start)
			}
			if mask&2 != 0 {
				params.End = timePtr(end)
				wantArgs = append(wantArgs, end)
			}
			if mask&4 != 0 {
				params.Offset = intPtr(7)
				wantArgs = append(wantArgs, 7)
			}
			if mask&8 != 0 {
				params.Count = intPtr(25)
				wantArgs = append(wantArgs, 25)
			}

			query, args := buildRange(TargetPartition, params)
			assert.Equal(t, wantArgs, args)
			assert.True(t, strings.HasPrefix(query, sqlListPartitions))
			assert.Contains(t, query, "ORDER BY created_at ASC")

			// bound placeholders are numbered consecutively from $2 in the
			// order start, end, offset, count
			slot := 2
			if params.Start != nil {
				assert.Contains(t, query, fmt.Sprintf("AND created_at >= $%d::TIMESTAMPTZ", slot))
				slot++
			}
			if params.End != nil {
				assert.Contains(t, query, fmt.Sprintf("AND created_at <= $%d::TIMESTAMPTZ", slot))
				slot++
			}
			if params.Offset != nil {
				assert.Contains(t, query, fmt.Sprintf("OFFSET $%d::INTEGER", slot))
				slot++
			}
			if params.Count != nil {
				assert.Contains(t, query, fmt.Sprintf("LIMIT $%d::INTEGER", slot))
				slot++
			}
			assert.NotContains(t, query, fmt.Sprintf("$%d", slot))

			// the dataset form is the same clause set shifted down one slot
			dsQuery, dsArgs := buildRange(TargetDataset, params)
			assert.Equal(t, wantArgs, dsArgs)
			assert.True(t, strings.HasPrefix(dsQuery, sqlListDatasets))
			assert.NotContains(t, dsQuery, fmt.Sprintf("$%d", slot-1),
				"dataset form must not reuse the partition form's highest slot")
			if len(wantArgs) > 0 {
				assert.Contains(t, dsQuery, "$1")
			}
		})
	}
}

func TestBuildRangeNilParams(t *testing.T) {
	query, args := buildRange(TargetPartition, nil)
	require.Empty(t, args)
	assert.Equal(t, sqlListPartitions+" ORDER BY created_at ASC", query)

	query, args = buildRange(TargetDataset, nil)
	require.Empty(t, args)
	assert.Equal(t, sqlListDatasets+" ORDER BY created_at ASC", query)
}

func TestBuildRangeClauseOrder(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	params := &types.RangeParams{Start: timePtr(start), Count: intPtr(10), Offset: intPtr(5)}

	query, args := buildRange(TargetPartition, params)
	require.Equal(t, []any{start, 5, 10}, args)

	// OFFSET must precede LIMIT and both must follow ORDER BY
	order := strings.Index(query, "ORDER BY")
	offset := strings.Index(query, "OFFSET")
	limit := strings.Index(query, "LIMIT")
	assert.Less(t, order, offset)
	assert.Less(t, offset, limit)
}

func TestDecPlaceholders(t *testing.T) {
	assert.Equal(t, "AND created_at >= $1::TIMESTAMPTZ LIMIT $2::INTEGER",
		decPlaceholders("AND created_at >= $2::TIMESTAMPTZ LIMIT $3::INTEGER"))
	assert.Equal(t, "$1 $2 $3 $4", decPlaceholders("$2 $3 $4 $5"))
	assert.Equal(t, "no placeholders", decPlaceholders("no placeholders"))
}

func TestDecPlaceholdersPanicsPastMax(t *testing.T) {
	assert.Panics(t, func() {
		decPlaceholders("LIMIT $6::INTEGER")
	})
}
