// Package sqlclient talks to a tinyrdb server over the sqlwire protocol.
package sqlclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tuannm99/tinyrdb/internal/engine"
	"github.com/tuannm99/tinyrdb/server/sqlwire"
)

// Client is a simple synchronous client.
// It locks send/recv so you can call it concurrently but requests serialize.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
	id   atomic.Uint64

	// Optional per-request timeout (0 = no timeout).
	rwTimeout time.Duration
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	return DialContext(context.Background(), addr, timeout)
}

func DialContext(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: c}, nil
}

// SetRWTimeout sets a per-request read/write deadline.
func (c *Client) SetRWTimeout(d time.Duration) {
	if c == nil {
		return
	}
	c.rwTimeout = d
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Exec runs sql on the server. A failed statement is reported in the result,
// not as an error; errors are transport failures.
func (c *Client) Exec(sql string) (*engine.QueryResult, error) {
	return c.ExecContext(context.Background(), sql)
}

func (c *Client) ExecContext(ctx context.Context, sql string) (*engine.QueryResult, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpExecute, SQL: sql})
	if err != nil {
		return nil, err
	}
	return result(resp)
}

func (c *Client) Tables(ctx context.Context) ([]string, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpTables})
	if err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

func (c *Client) TableInfo(ctx context.Context, table string) (*engine.TableInfo, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpTableInfo, Table: table})
	if err != nil {
		return nil, err
	}
	if resp.Info == nil {
		return nil, errors.New("sqlclient: empty table info")
	}
	return resp.Info, nil
}

func (c *Client) Rows(ctx context.Context, table string, limit, offset int, orderBy, orderDir string) (*engine.QueryResult, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{
		Op: sqlwire.OpRows, Table: table,
		Limit: limit, Offset: offset, OrderBy: orderBy, OrderDir: orderDir,
	})
	if err != nil {
		return nil, err
	}
	return result(resp)
}

func (c *Client) InsertRow(ctx context.Context, table string, data map[string]any) (*engine.QueryResult, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpInsert, Table: table, Data: data})
	if err != nil {
		return nil, err
	}
	return result(resp)
}

func (c *Client) UpdateRow(ctx context.Context, table string, id any, data map[string]any) (*engine.QueryResult, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpUpdate, Table: table, RowID: id, Data: data})
	if err != nil {
		return nil, err
	}
	return result(resp)
}

func (c *Client) DeleteRow(ctx context.Context, table string, id any) (*engine.QueryResult, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpDelete, Table: table, RowID: id})
	if err != nil {
		return nil, err
	}
	return result(resp)
}

func (c *Client) DropTable(ctx context.Context, table string) (*engine.QueryResult, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpDrop, Table: table})
	if err != nil {
		return nil, err
	}
	return result(resp)
}

func (c *Client) Reset(ctx context.Context) error {
	_, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpReset})
	return err
}

func (c *Client) Stats(ctx context.Context) (*engine.Stats, error) {
	resp, err := c.roundTrip(ctx, sqlwire.Request{Op: sqlwire.OpStats})
	if err != nil {
		return nil, err
	}
	if resp.Stats == nil {
		return nil, errors.New("sqlclient: empty stats")
	}
	return resp.Stats, nil
}

func result(resp *sqlwire.Response) (*engine.QueryResult, error) {
	if resp.Result == nil {
		return nil, errors.New("sqlclient: empty result")
	}
	return resp.Result, nil
}

// roundTrip sends req and waits for its response. A server-side error in the
// response is returned as an error.
func (c *Client) roundTrip(ctx context.Context, req sqlwire.Request) (*sqlwire.Response, error) {
	if c == nil || c.conn == nil {
		return nil, fmt.Errorf("sqlclient: nil client")
	}

	req.ID = c.id.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	defer func() {
		// Clear deadline after request so idle connection doesn't expire.
		_ = c.conn.SetDeadline(time.Time{})
	}()

	if err := sqlwire.WriteFrame(c.conn, req); err != nil {
		return nil, err
	}
	var resp sqlwire.Response
	if err := sqlwire.ReadFrame(c.conn, &resp); err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("sqlclient: response id mismatch: got=%d want=%d", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return &resp, nil
}

func (c *Client) applyDeadline(ctx context.Context) error {
	// Prefer context deadline if present; otherwise use rwTimeout.
	if dl, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(dl)
	}
	if c.rwTimeout > 0 {
		return c.conn.SetDeadline(time.Now().Add(c.rwTimeout))
	}
	return nil
}
