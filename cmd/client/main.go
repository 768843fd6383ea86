package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"

	"github.com/tuannm99/tinyrdb/internal/engine"
	"github.com/tuannm99/tinyrdb/sqlclient"
)

const prompt = "tinyrdb> "

// ---- History (own file) ----

type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(stmt string) error {
	stmt = compactOneLine(stmt)
	if stmt == "" || h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, stmt); err != nil {
		return err
	}
	h.lines = append(h.lines, stmt)
	return nil
}

func (h *History) Print(last int) {
	if last <= 0 || last > len(h.lines) {
		last = len(h.lines)
	}
	for i := len(h.lines) - last; i < len(h.lines); i++ {
		fmt.Printf("%5d  %s\n", i+1, h.lines[i])
	}
}

// compactOneLine collapses all whitespace runs to single spaces.
func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ---- REPL helpers ----

// statementComplete checks if we have a terminating ';' outside single quotes.
// A doubled quote inside a string toggles twice, which is what we want.
func statementComplete(buf string) bool {
	inQuote := false
	for _, r := range buf {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			return true
		}
	}
	return false
}

func printResult(res *engine.QueryResult) {
	if !res.Success {
		fmt.Printf("%s: %s\n", res.Error, res.Message)
		return
	}
	if len(res.Columns) == 0 {
		// DDL/DML
		fmt.Println(res.Message)
		return
	}

	cells := make([][]string, len(res.Rows))
	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = len(c)
	}
	for r, row := range res.Rows {
		cells[r] = make([]string, len(res.Columns))
		for i := range res.Columns {
			s := "NULL"
			if i < len(row) && row[i] != nil {
				s = fmt.Sprint(row[i])
			}
			cells[r][i] = s
			widths[i] = max(widths[i], len(s))
		}
	}

	printRow := func(values []string) {
		for i, v := range values {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Print(v + strings.Repeat(" ", widths[i]-len(v)))
		}
		fmt.Println()
	}

	printRow(res.Columns)
	for i, w := range widths {
		if i > 0 {
			fmt.Print("-+-")
		}
		fmt.Print(strings.Repeat("-", w))
	}
	fmt.Println()
	for _, row := range cells {
		printRow(row)
	}
	fmt.Printf("(%d rows)\n", res.RowCount)
}

func describe(ctx context.Context, cli *sqlclient.Client, table string) error {
	info, err := cli.TableInfo(ctx, table)
	if err != nil {
		return err
	}
	res := &engine.QueryResult{Success: true, Columns: []string{"column", "type", "nullable", "key", "default", "references"}}
	for _, c := range info.Columns {
		typ := c.Type
		if c.Length > 0 {
			typ = fmt.Sprintf("%s(%d)", c.Type, c.Length)
		}
		var key []string
		if c.PrimaryKey {
			key = append(key, "PK")
		} else if c.Unique {
			key = append(key, "UNIQUE")
		}
		if c.AutoIncrement {
			key = append(key, "AUTO")
		}
		res.Rows = append(res.Rows, []any{c.Name, typ, c.Nullable, strings.Join(key, " "), c.Default, c.References})
	}
	res.RowCount = len(res.Rows)
	printResult(res)
	for _, idx := range info.Indexes {
		kind := "index"
		if idx.Unique {
			kind = "unique index"
		}
		fmt.Printf("%s %s on (%s)\n", kind, idx.Name, idx.Column)
	}
	fmt.Printf("%d row(s)\n", info.RowCount)
	return nil
}

func meta(ctx context.Context, cli *sqlclient.Client, h *History, line string) (quit bool, err error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "\\q", "quit", "exit":
		return true, nil
	case "\\help":
		fmt.Println(`meta commands:
  \q | quit | exit       quit
  \dt                    list tables
  \d <table>             describe a table
  \stats                 database statistics
  \history               print history
  \help                  show help

sql:
  end statements with ';'
  multiline is supported (CLI will wait until ';')`)
	case "\\history":
		h.Print(50)
	case "\\dt":
		tables, err := cli.Tables(ctx)
		if err != nil {
			return false, err
		}
		for _, t := range tables {
			fmt.Println(t)
		}
	case "\\d":
		if arg == "" {
			return false, errors.New("usage: \\d <table>")
		}
		return false, describe(ctx, cli, arg)
	case "\\stats":
		st, err := cli.Stats(ctx)
		if err != nil {
			return false, err
		}
		fmt.Printf("tables: %d, bytes on disk: %d, last modified: %s\n",
			st.Tables, st.Bytes, st.LastModified.Format(time.RFC3339))
		for name, n := range st.RowCounts {
			fmt.Printf("  %s: %d row(s)\n", name, n)
		}
	default:
		fmt.Printf("unknown command: %s\n", line)
	}
	return false, nil
}

func isMetaCommand(line string) bool {
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tinyrdb_history"
	}
	return filepath.Join(home, ".tinyrdb_history")
}

func main() {
	var (
		addr       = pflag.String("addr", "127.0.0.1:5433", "server address")
		timeout    = pflag.Duration("timeout", 3*time.Second, "dial timeout")
		histPath   = pflag.String("history", defaultHistoryPath(), "history file path")
		histMax    = pflag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShotSQL = pflag.StringP("command", "c", "", "execute SQL and exit")
	)
	pflag.Parse()

	cli, err := sqlclient.Dial(*addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cli.Close() }()
	ctx := context.Background()

	if strings.TrimSpace(*oneShotSQL) != "" {
		res, err := cli.Exec(*oneShotSQL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printResult(res)
		if !res.Success {
			os.Exit(1)
		}
		return
	}

	h := NewHistory(*histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	// preload history so the arrow keys work immediately
	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	var buf strings.Builder
	fmt.Printf("connected to %s\n", *addr)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			// Ctrl+C clears current buffer
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt(prompt)
				continue
			}
			fmt.Println("^C")
			continue
		}
		if err != nil {
			// EOF
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if buf.Len() == 0 && isMetaCommand(line) {
			quit, err := meta(ctx, cli, h, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if quit {
				return
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		if !statementComplete(buf.String()) {
			rl.SetPrompt("...> ")
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rl.SetPrompt(prompt)

		_ = h.Append(stmt)
		_ = rl.SaveHistory(compactOneLine(stmt))

		res, err := cli.Exec(stmt)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(res)
	}
}
