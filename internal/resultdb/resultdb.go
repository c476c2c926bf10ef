// Package resultdb exports a run's per-node analysis results and diagnostics
// into a SQLite database for ad hoc queries.
package resultdb

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"qualflow/internal/diag"
	"qualflow/internal/driver"
	"qualflow/internal/flow"
	"qualflow/internal/qual"
	"qualflow/internal/source"
	"qualflow/internal/types"
	"qualflow/internal/version"
)

// Counts summarises an export.
type Counts struct {
	Methods     int
	Nodes       int
	Stores      int
	Diagnostics int
}

// Write replaces the database at path with the results of res. Per-node
// tables are only filled when the run kept its results.
func Write(path string, res *driver.Result) (counts Counts, err error) {
	_ = os.Remove(path) // ignore if doesn't exist

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return counts, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := sqlitex.ExecuteTransient(conn, "PRAGMA synchronous = NORMAL", nil); err != nil {
		return counts, err
	}
	if err := createTables(conn); err != nil {
		return counts, err
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return counts, fmt.Errorf("begin tx: %w", err)
	}
	w := &writer{conn: conn, res: res}
	err = w.insertAll(&counts)
	endFn(&err)
	if err != nil {
		return counts, fmt.Errorf("commit: %w", err)
	}
	if err := createIndexes(conn); err != nil {
		return counts, err
	}
	return counts, nil
}

func createTables(conn *sqlite.Conn) error {
	ddl := `
CREATE TABLE meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE qualifiers (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL,
    hierarchy TEXT NOT NULL,
    poly INTEGER NOT NULL,
    supers TEXT
);

CREATE TABLE methods (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    file TEXT,
    line INTEGER,
    blocks INTEGER,
    error TEXT
);

CREATE TABLE blocks (
    method INTEGER NOT NULL,
    block INTEGER NOT NULL,
    term TEXT NOT NULL,
    succs TEXT,
    visits INTEGER NOT NULL
);

CREATE TABLE nodes (
    method INTEGER NOT NULL,
    node INTEGER NOT NULL,
    block INTEGER,
    kind TEXT NOT NULL,
    text TEXT NOT NULL,
    line INTEGER,
    col INTEGER,
    reached INTEGER NOT NULL,
    declared TEXT,
    value TEXT,
    refined TEXT
);

CREATE TABLE stores (
    method INTEGER NOT NULL,
    node INTEGER,
    phase TEXT NOT NULL,
    expr TEXT NOT NULL,
    value TEXT NOT NULL
);

CREATE TABLE diagnostics (
    id INTEGER PRIMARY KEY,
    code TEXT NOT NULL,
    key TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    file TEXT,
    line INTEGER,
    col INTEGER,
    notes TEXT
);
`
	return sqlitex.ExecuteScript(conn, ddl, nil)
}

func createIndexes(conn *sqlite.Conn) error {
	indexes := `
CREATE INDEX idx_nodes_method ON nodes(method, node);
CREATE INDEX idx_nodes_kind ON nodes(kind);
CREATE INDEX idx_stores_node ON stores(method, node);
CREATE INDEX idx_diagnostics_code ON diagnostics(code);
`
	return sqlitex.ExecuteScript(conn, indexes, nil)
}

type writer struct {
	conn *sqlite.Conn
	res  *driver.Result
}

func (w *writer) insertAll(counts *Counts) error {
	if err := w.insertMeta(); err != nil {
		return err
	}
	if w.res.Checker != nil {
		if err := w.insertQualifiers(w.res.Checker.Hierarchy()); err != nil {
			return err
		}
	}
	for i, mr := range w.res.Methods {
		if err := w.insertMethod(int64(i+1), mr, counts); err != nil {
			return err
		}
	}
	n, err := w.insertDiagnostics(w.res.Bag.Items())
	counts.Diagnostics = n
	return err
}

func (w *writer) insertMeta() error {
	meta := map[string]string{
		"version":   version.Version,
		"cache_hit": strconv.FormatBool(w.res.CacheHit),
	}
	if w.res.File != nil {
		meta["file"] = w.res.File.Path
	}
	if w.res.Checker != nil {
		meta["checker"] = w.res.Checker.Name()
	}
	for k, v := range meta {
		if err := sqlitex.Execute(w.conn, `INSERT INTO meta (key, value) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{k, v}}); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}
	return nil
}

func (w *writer) insertQualifiers(h *qual.Hierarchy) error {
	stmt, err := w.conn.Prepare(`INSERT INTO qualifiers (id, label, hierarchy, poly, supers) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare qualifier insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for _, q := range h.All() {
		def := h.Def(q)
		supers := make([]string, len(def.Supers))
		for i, s := range def.Supers {
			supers[i] = h.String(s)
		}
		stmt.BindInt64(1, int64(q))
		stmt.BindText(2, h.String(q))
		stmt.BindText(3, h.String(h.Top(q)))
		stmt.BindBool(4, h.IsPoly(q))
		bindTextOrNull(stmt, 5, strings.Join(supers, ", "))
		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert qualifier %s: %w", h.String(q), err)
		}
		_ = stmt.Reset()
	}
	return nil
}

func (w *writer) insertMethod(id int64, mr *driver.MethodResult, counts *Counts) error {
	var errText string
	if mr.Err != nil {
		errText = mr.Err.Error()
	}
	file, line, _ := w.position(mr.Method.Span)
	var blocks int
	if mr.Graph != nil {
		blocks = len(mr.Graph.Blocks)
	}
	if err := sqlitex.Execute(w.conn,
		`INSERT INTO methods (id, name, file, line, blocks, error) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{id, mr.Method.QualifiedName(), nullable(file), nullableInt(line), blocks, nullable(errText)}}); err != nil {
		return fmt.Errorf("insert method %s: %w", mr.Method.QualifiedName(), err)
	}
	counts.Methods++
	if mr.Graph == nil {
		return nil
	}
	if err := w.insertBlocks(id, mr); err != nil {
		return err
	}
	n, err := w.insertNodes(id, mr)
	counts.Nodes += n
	if err != nil {
		return err
	}
	n, err = w.insertStores(id, mr)
	counts.Stores += n
	return err
}

func (w *writer) insertBlocks(method int64, mr *driver.MethodResult) error {
	stmt, err := w.conn.Prepare(`INSERT INTO blocks (method, block, term, succs, visits) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare block insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i := range mr.Graph.Blocks {
		b := &mr.Graph.Blocks[i]
		succs := make([]string, 0, 2)
		for _, s := range b.Succs() {
			succs = append(succs, "bb"+strconv.Itoa(int(s)))
		}
		visits := 0
		if mr.Flow != nil {
			visits = mr.Flow.Visits(b.ID)
		}
		stmt.BindInt64(1, method)
		stmt.BindInt64(2, int64(b.ID))
		stmt.BindText(3, b.Term.Kind.String())
		bindTextOrNull(stmt, 4, strings.Join(succs, " "))
		stmt.BindInt64(5, int64(visits))
		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert block bb%d: %w", b.ID, err)
		}
		_ = stmt.Reset()
	}
	return nil
}

func (w *writer) insertNodes(method int64, mr *driver.MethodResult) (int, error) {
	stmt, err := w.conn.Prepare(`INSERT INTO nodes (method, node, block, kind, text, line, col, reached, declared, value, refined) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare node insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	owners := mr.Graph.Owners()
	h := w.res.Checker.Hierarchy()
	count := 0
	for _, n := range mr.Graph.Nodes.All() {
		_, line, col := w.position(n.Span)
		reached := mr.Flow != nil && mr.Flow.Reached(n.ID)
		var declared, value, refined string
		if mr.Types != nil && n.Type != types.NoTypeID {
			if at := mr.Types.DeclaredType(n); at != nil {
				declared = at.String()
			}
		}
		if reached {
			if v, ok := mr.Flow.Value(n.ID); ok {
				value = v.Format(h)
			}
			if at := mr.Flow.AnnotatedTypeOf(n.ID); at != nil {
				refined = at.String()
			}
		}
		stmt.BindInt64(1, method)
		stmt.BindInt64(2, int64(n.ID))
		if b, ok := owners[n.ID]; ok {
			stmt.BindInt64(3, int64(b))
		} else {
			stmt.BindNull(3)
		}
		stmt.BindText(4, n.Kind.String())
		stmt.BindText(5, mr.Graph.Nodes.String(n.ID, w.res.Interner))
		bindIntOrNull(stmt, 6, line)
		bindIntOrNull(stmt, 7, col)
		stmt.BindBool(8, reached)
		bindTextOrNull(stmt, 9, declared)
		bindTextOrNull(stmt, 10, value)
		bindTextOrNull(stmt, 11, refined)
		if _, err := stmt.Step(); err != nil {
			return count, fmt.Errorf("insert node %d: %w", n.ID, err)
		}
		_ = stmt.Reset()
		count++
	}
	return count, nil
}

// insertStores records the store after every reached node and the exit
// store, one row per tracked expression.
func (w *writer) insertStores(method int64, mr *driver.MethodResult) (int, error) {
	if mr.Flow == nil {
		return 0, nil
	}
	stmt, err := w.conn.Prepare(`INSERT INTO stores (method, node, phase, expr, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare store insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	h := w.res.Checker.Hierarchy()
	count := 0
	emit := func(nodeID int64, phase string, st *flow.Store) error {
		for _, e := range st.Exprs() {
			v, _ := st.Get(e)
			stmt.BindInt64(1, method)
			if nodeID < 0 {
				stmt.BindNull(2)
			} else {
				stmt.BindInt64(2, nodeID)
			}
			stmt.BindText(3, phase)
			stmt.BindText(4, e.String())
			stmt.BindText(5, v.Format(h))
			if _, err := stmt.Step(); err != nil {
				return fmt.Errorf("insert store entry %s: %w", e, err)
			}
			_ = stmt.Reset()
			count++
		}
		return nil
	}
	for i := range mr.Graph.Blocks {
		for _, id := range mr.Graph.Blocks[i].Nodes {
			if !mr.Flow.Reached(id) {
				continue
			}
			if st := mr.Flow.StoreAfter(id); st != nil {
				if err := emit(int64(id), "after", st); err != nil {
					return count, err
				}
			}
		}
	}
	if exit := mr.Flow.ExitStore(); exit != nil {
		if err := emit(-1, "exit", exit); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (w *writer) insertDiagnostics(diags []diag.Diagnostic) (int, error) {
	stmt, err := w.conn.Prepare(`INSERT INTO diagnostics (code, key, severity, message, file, line, col, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare diagnostic insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i, d := range diags {
		file, line, col := w.position(d.Primary)
		stmt.BindText(1, d.Code.ID())
		stmt.BindText(2, d.Code.Key())
		stmt.BindText(3, d.Severity.String())
		stmt.BindText(4, d.Message)
		bindTextOrNull(stmt, 5, file)
		bindIntOrNull(stmt, 6, line)
		bindIntOrNull(stmt, 7, col)
		bindTextOrNull(stmt, 8, notesJSON(d.Notes))
		if _, err := stmt.Step(); err != nil {
			return i, fmt.Errorf("insert diagnostic %s: %w", d.Code.ID(), err)
		}
		_ = stmt.Reset()
	}
	return len(diags), nil
}

// position resolves sp to a path and 1-based line and column; class files
// have no lines.
func (w *writer) position(sp source.Span) (file string, line, col int) {
	f := w.res.FileSet.Get(sp.File)
	if f == nil {
		return "", 0, 0
	}
	if f.Flags&source.FileBinary != 0 {
		return f.Path, 0, 0
	}
	start, _ := w.res.FileSet.Resolve(sp)
	return f.Path, int(start.Line), int(start.Col)
}

func notesJSON(notes []diag.Note) string {
	if len(notes) == 0 {
		return ""
	}
	msgs := make([]string, len(notes))
	for i, n := range notes {
		msgs[i] = n.Msg
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return ""
	}
	return string(b)
}

func bindTextOrNull(stmt *sqlite.Stmt, col int, s string) {
	if s == "" {
		stmt.BindNull(col)
	} else {
		stmt.BindText(col, s)
	}
}

func bindIntOrNull(stmt *sqlite.Stmt, col, v int) {
	if v == 0 {
		stmt.BindNull(col)
	} else {
		stmt.BindInt64(col, int64(v))
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
