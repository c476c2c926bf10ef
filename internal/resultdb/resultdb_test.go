package resultdb_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"qualflow/internal/checker"
	"qualflow/internal/checkers/nullness"
	"qualflow/internal/driver"
	"qualflow/internal/resultdb"
	"qualflow/internal/source"
)

const program = `
classes:
  - name: Cell
    fields:
      - name: next
        type: "@Nullable Cell"
    methods:
      - name: <init>
        body: []
      - name: follow
        returns: "@Nullable Cell"
        body:
          - if: next != null
            then:
              - return next.next
          - return null
      - name: bad
        returns: "@Nullable Cell"
        body:
          - return next.next
`

func export(t *testing.T) (string, resultdb.Counts) {
	t.Helper()
	r := checker.NewRegistry()
	if err := nullness.Register(r); err != nil {
		t.Fatal(err)
	}
	res, err := driver.CheckBytes(context.Background(), source.NewFileSet(), "cell.yaml", []byte(program), driver.Options{
		Checker:     nullness.Name,
		Registry:    r,
		KeepResults: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "results.db")
	counts, err := resultdb.Write(path, res)
	if err != nil {
		t.Fatal(err)
	}
	return path, counts
}

func query(t *testing.T, path, q string, args ...any) [][]string {
	t.Helper()
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	var rows [][]string
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row := make([]string, stmt.ColumnCount())
			for i := range row {
				row[i] = stmt.ColumnText(i)
			}
			rows = append(rows, row)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("%s: %v", q, err)
	}
	return rows
}

func TestWriteCounts(t *testing.T) {
	path, counts := export(t)
	if counts.Methods != 3 || counts.Diagnostics != 1 {
		t.Errorf("counts = %+v", counts)
	}
	if counts.Nodes == 0 || counts.Stores == 0 {
		t.Errorf("no nodes or stores exported: %+v", counts)
	}
	rows := query(t, path, `SELECT count(*) FROM nodes`)
	if rows[0][0] == "0" {
		t.Error("nodes table is empty")
	}
	rows = query(t, path, `SELECT value FROM meta WHERE key = 'checker'`)
	if len(rows) != 1 || rows[0][0] != nullness.Name {
		t.Errorf("checker meta = %v", rows)
	}
}

func TestWriteDiagnostics(t *testing.T) {
	path, _ := export(t)
	rows := query(t, path, `SELECT code, severity, line FROM diagnostics`)
	if len(rows) != 1 {
		t.Fatalf("diagnostics = %v", rows)
	}
	if rows[0][0] != "QF5001" || rows[0][1] != "ERROR" || rows[0][2] != "20" {
		t.Errorf("diagnostic row = %v", rows[0])
	}
}

func TestWriteRefinedValues(t *testing.T) {
	path, _ := export(t)
	rows := query(t, path, `
SELECT n.value FROM nodes n JOIN methods m ON m.id = n.method
WHERE m.name = 'Cell.follow' AND n.kind = ? AND n.text = 'this.next' AND n.reached
ORDER BY n.node`, "field_access")
	if len(rows) < 2 {
		t.Fatalf("rows = %v", rows)
	}
	if got := rows[len(rows)-1][0]; !strings.Contains(got, "@NonNull") {
		t.Errorf("refined next = %q", got)
	}
	rows = query(t, path, `SELECT count(*) FROM qualifiers WHERE poly`)
	if rows[0][0] != "1" {
		t.Errorf("poly qualifiers = %v", rows)
	}
	rows = query(t, path, `SELECT visits FROM blocks b JOIN methods m ON m.id = b.method WHERE m.name = 'Cell.bad'`)
	for _, r := range rows {
		if r[0] != "1" {
			t.Errorf("straight-line block visited %s times", r[0])
		}
	}
}
