package eventreplay

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

type row struct {
	program, outcome, name string
	count                  uint64
}

func (s *State) rows() []row {
	var rows []row
	for program, byName := range s.Events {
		for name, count := range byName {
			rows = append(rows, row{program, "decoded", name, count})
		}
	}
	for program, count := range s.Unknown {
		rows = append(rows, row{program, "unknown", "", count})
	}
	for program, byKind := range s.Errors {
		for kind, count := range byKind {
			rows = append(rows, row{program, "error", kind, count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].program != rows[j].program {
			return rows[i].program < rows[j].program
		}
		if rows[i].outcome != rows[j].outcome {
			return rows[i].outcome < rows[j].outcome
		}
		return rows[i].name < rows[j].name
	})
	return rows
}

// Render prints per-program counts followed by the payload size distribution.
func (s *State) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Program", "Outcome", "Name", "Count"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
	})
	for _, r := range s.rows() {
		table.Append([]string{r.program, r.outcome, r.name, strconv.FormatUint(r.count, 10)})
	}
	table.SetFooter([]string{
		fmt.Sprintf("seq <= %d", s.LastProcessedSeq),
		fmt.Sprintf("gaps: %d", s.Gaps),
		"messages",
		strconv.FormatUint(s.Messages, 10),
	})
	table.Render()

	if len(s.SizeDistribution) == 0 {
		return
	}
	buckets := make([]int, 0, len(s.SizeDistribution))
	for b := range s.SizeDistribution {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)

	sizes := tablewriter.NewWriter(w)
	sizes.SetHeader([]string{"Payload size <=", "Count"})
	sizes.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	for _, b := range buckets {
		sizes.Append([]string{strconv.Itoa(b), strconv.FormatUint(s.SizeDistribution[b], 10)})
	}
	sizes.Render()
}
