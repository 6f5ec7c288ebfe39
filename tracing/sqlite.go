package tracing

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A TraceWriter stores finished tasks.
type TraceWriter interface {
	Write(task Task)
	Flush()
}

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB
	statement *sql.Stmt

	lock             sync.Mutex
	dbName           string
	tasksToWriteToDB []Task
	batchSize        int
}

// NewSQLiteTraceWriter creates a new SQLiteWriter. If path is empty, a unique
// name is generated. The database file is path with the ".sqlite3" suffix.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		dbName:    path,
		batchSize: 100000,
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// FileName returns the name of the database file.
func (t *SQLiteTraceWriter) FileName() string {
	return t.dbName + ".sqlite3"
}

// Init establishes a connection to the database.
func (t *SQLiteTraceWriter) Init() error {
	if t.dbName == "" {
		t.dbName = "cpfifo_trace_" + xid.New().String()
	}

	filename := t.FileName()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filename, err)
	}

	t.DB = db

	if err := t.createTable(); err != nil {
		return err
	}

	t.statement, err = t.Prepare(`
		INSERT INTO trace(
			task_id, parent_id, kind, what, location, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing the insert statement: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Trace is collected in database: %s\n", filename)

	return nil
}

func (t *SQLiteTraceWriter) createTable() error {
	stmts := []string{`
		create table trace
		(
			task_id    varchar(200) not null,
			parent_id  varchar(200),
			kind       varchar(100),
			what       varchar(100),
			location   varchar(100),
			start_time integer not null,
			end_time   integer default 0
		);`,
		`create index trace_kind_index on trace (kind);`,
		`create index trace_what_index on trace (what);`,
		`create index trace_location_index on trace (location);`,
		`create index trace_start_time_index on trace (start_time);`,
	}

	for _, s := range stmts {
		if _, err := t.Exec(s); err != nil {
			return fmt.Errorf("creating the trace table: %w", err)
		}
	}

	return nil
}

// Write buffers a task. The buffer is written to the database when it is
// full.
func (t *SQLiteTraceWriter) Write(task Task) {
	t.lock.Lock()
	t.tasksToWriteToDB = append(t.tasksToWriteToDB, task)
	full := len(t.tasksToWriteToDB) >= t.batchSize
	t.lock.Unlock()

	if full {
		t.Flush()
	}
}

// Flush writes all the buffered tasks to the database.
func (t *SQLiteTraceWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.tasksToWriteToDB) == 0 || t.DB == nil {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, task := range t.tasksToWriteToDB {
		_, err := t.statement.Exec(
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			uint64(task.StartTime),
			uint64(task.EndTime),
		)
		if err != nil {
			panic(fmt.Errorf("inserting task %s: %w", task.ID, err))
		}
	}

	t.tasksToWriteToDB = nil
}

func (t *SQLiteTraceWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		panic(fmt.Errorf("executing %q: %w", query, err))
	}

	return res
}

// Close flushes the buffered tasks and closes the database.
func (t *SQLiteTraceWriter) Close() error {
	t.Flush()

	if t.DB == nil {
		return nil
	}

	return t.DB.Close()
}
