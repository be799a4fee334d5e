package catalog

import (
	"fmt"
	"strings"

	"github.com/cuemby/datadex/pkg/types"
)

// Target selects which base query a range is built against.
type Target int

const (
	// TargetPartition ranges over a dataset's partitions. Slot $1 is the
	// dataset id, so bound placeholders start at $2.
	TargetPartition Target = iota
	// TargetDataset ranges over all datasets. There is no dataset-id slot,
	// so every placeholder of the partition form shifts down by one.
	TargetDataset
)

// maxPlaceholder is the highest legal slot in the partition form:
// $1 dataset_id, $2 start, $3 end, $4 offset, $5 count.
const maxPlaceholder = 5

// buildRange returns the complete SQL for a range query against the given
// target plus the bind arguments for the appended clauses. For
// TargetPartition the caller prepends the dataset id as argument one.
//
// The partition-form clause strings are the source of truth; the dataset
// form is derived by decrementing every placeholder. All sixteen presence
// combinations of start/end/count/offset reduce to appending at most one
// clause per present field, always ordered created_at ASC.
func buildRange(target Target, params *types.RangeParams) (string, []any) {
	if params == nil {
		params = &types.RangeParams{}
	}

	var (
		clauses []string
		args    []any
		slot    = 2
	)
	next := func() int { n := slot; slot++; return n }

	if params.Start != nil {
		clauses = append(clauses, fmt.Sprintf("AND created_at >= $%d::TIMESTAMPTZ", next()))
		args = append(args, *params.Start)
	}
	if params.End != nil {
		clauses = append(clauses, fmt.Sprintf("AND created_at <= $%d::TIMESTAMPTZ", next()))
		args = append(args, *params.End)
	}
	clauses = append(clauses, "ORDER BY created_at ASC")
	if params.Offset != nil {
		clauses = append(clauses, fmt.Sprintf("OFFSET $%d::INTEGER", next()))
		args = append(args, *params.Offset)
	}
	if params.Count != nil {
		clauses = append(clauses, fmt.Sprintf("LIMIT $%d::INTEGER", next()))
		args = append(args, *params.Count)
	}

	appended := strings.Join(clauses, " ")

	switch target {
	case TargetDataset:
		return fmt.Sprintf("%s %s", sqlListDatasets, decPlaceholders(appended)), args
	default:
		return fmt.Sprintf("%s %s", sqlListPartitions, appended), args
	}
}

// decPlaceholders shifts every positional placeholder in the partition-form
// clause down by one to produce the dataset form, which has no dataset-id
// slot. The legal maximum in the input is $5; seeing $6 means a new bound
// was added without updating this shift, which must not pass silently.
func decPlaceholders(v string) string {
	if strings.Contains(v, fmt.Sprintf("$%d", maxPlaceholder+1)) {
		panic(fmt.Sprintf("catalog: decPlaceholders saw $%d; update the shift for the new placeholder", maxPlaceholder+1))
	}
	for n := 2; n <= maxPlaceholder; n++ {
		v = strings.ReplaceAll(v, fmt.Sprintf("$%d", n), fmt.Sprintf("$%d", n-1))
	}
	return v
}
