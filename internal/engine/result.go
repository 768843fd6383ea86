package engine

import (
	"github.com/tuannm99/tinyrdb/internal/sql/executor"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// QueryResult is what every engine call reports. A failure always has
// Success false and a non-empty Message.
type QueryResult struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`

	// Error names the failure class, e.g. "ConstraintViolation".
	Error string `json:"error,omitempty"`
}

func succeeded(r *executor.Result) *QueryResult {
	res := &QueryResult{
		Success: true,
		Message: r.Message,
		Columns: r.Columns,
		Rows:    make([][]any, len(r.Rows)),
	}
	if res.Columns == nil {
		res.Columns = []string{}
	}
	for i, row := range r.Rows {
		out := make([]any, len(row))
		for j, v := range row {
			out[j] = v.Native()
		}
		res.Rows[i] = out
	}
	if r.Rows != nil {
		res.RowCount = len(r.Rows)
	} else {
		res.RowCount = int(r.RowsAffected)
	}
	return res
}

func failed(err error) *QueryResult {
	res := &QueryResult{Message: err.Error(), Columns: []string{}, Rows: [][]any{}, Error: "Error"}
	if k := sqlerr.KindOf(err); k != 0 {
		res.Error = k.String()
	}
	if res.Message == "" {
		res.Message = res.Error
	}
	return res
}
