// Package sqlexec runs single SQL statements over a fresh, unpooled connection
// and reports either the rows a statement produced or the rows it affected.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	// sqlite driver, registered as "sqlite".
	_ "github.com/glebarez/go-sqlite"
)

// Supported driver names.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Opener opens a session against the backing database.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one connection's worth of work. Close must always be called.
type Session interface {
	Run(ctx context.Context, query string) (Result, error)
	Close() error
}

// Options describes how to reach the database.
type Options struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// DSN, when set, is passed to the driver verbatim.
	DSN string
}

// DataSource returns the driver DSN for the options.
func (o Options) DataSource() (string, error) {
	if o.DSN != "" {
		return o.DSN, nil
	}
	switch o.Driver {
	case DriverMySQL:
		port := o.Port
		if port == 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User = o.User
		mc.Passwd = o.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(o.Host, strconv.Itoa(port))
		mc.DBName = o.Database
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	case DriverSQLite:
		return "", errors.New("sqlite requires an explicit dsn")
	default:
		return "", fmt.Errorf("unsupported driver %q", o.Driver)
	}
}

// affectedQuery reads the row count of the previous statement on the same connection.
func affectedQuery(driver string) string {
	if driver == DriverSQLite {
		return "SELECT changes()"
	}
	return "SELECT ROW_COUNT()"
}

var _ Opener = (*DB)(nil)

// DB opens a new database handle for every session.
type DB struct {
	driver string
	dsn    string
}

// NewDB validates the options and returns an Opener for them.
func NewDB(o Options) (*DB, error) {
	if o.Driver == "" {
		o.Driver = DriverMySQL
	}
	dsn, err := o.DataSource()
	if err != nil {
		return nil, err
	}
	return &DB{driver: o.Driver, dsn: dsn}, nil
}

// Driver reports the database/sql driver name in use.
func (d *DB) Driver() string { return d.driver }

// Open dials the database and pins a single connection for the session.
func (d *DB) Open(ctx context.Context) (Session, error) {
	db, err := sql.Open(d.driver, d.dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}
	return &session{db: db, conn: conn, driver: d.driver}, nil
}

type session struct {
	db     *sql.DB
	conn   *sql.Conn
	driver string
}

func (s *session) Run(ctx context.Context, query string) (Result, error) {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return Result{}, err
	}
	cols, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return Result{}, err
	}
	if len(cols) == 0 {
		// Some drivers only execute the statement as the rows are stepped.
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return Result{}, err
		}
		if err := rows.Close(); err != nil {
			return Result{}, err
		}
		var n int64
		if err := s.conn.QueryRowContext(ctx, affectedQuery(s.driver)).Scan(&n); err != nil {
			return Result{}, err
		}
		return Affected(n), nil
	}
	defer rows.Close()
	records, err := scanRecords(rows, cols)
	if err != nil {
		return Result{}, err
	}
	return Rows(records), nil
}

func (s *session) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

func scanRecords(rows *sql.Rows, cols []*sql.ColumnType) ([]Record, error) {
	records := make([]Record, 0)
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			rec[col.Name()] = normalize(values[i], col.DatabaseTypeName())
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
