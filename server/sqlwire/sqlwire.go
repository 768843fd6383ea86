// Package sqlwire is the TCP protocol between tinyrdb servers and clients:
// length-prefixed JSON frames, one response per request, matched by ID.
package sqlwire

import "github.com/tuannm99/tinyrdb/internal/engine"

// Operations a request can name. An empty Op means OpExecute.
const (
	OpExecute   = "execute"
	OpTables    = "tables"
	OpTableInfo = "table_info"
	OpRows      = "rows"
	OpInsert    = "insert"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpDrop      = "drop"
	OpReset     = "reset"
	OpStats     = "stats"
)

type Request struct {
	ID  uint64 `json:"id"`
	Op  string `json:"op,omitempty"`
	SQL string `json:"sql,omitempty"`

	Table    string         `json:"table,omitempty"`
	RowID    any            `json:"row_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
	OrderBy  string         `json:"order_by,omitempty"`
	OrderDir string         `json:"order_dir,omitempty"`
}

// Response carries exactly one of its payloads, or Error.
type Response struct {
	ID     uint64              `json:"id"`
	Result *engine.QueryResult `json:"result,omitempty"`
	Tables []string            `json:"tables,omitempty"`
	Info   *engine.TableInfo   `json:"info,omitempty"`
	Stats  *engine.Stats       `json:"stats,omitempty"`
	Error  string              `json:"error,omitempty"`
}
