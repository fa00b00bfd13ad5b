package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type MySQLConfig struct {
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Addr     string `json:"addr" yaml:"addr"`
	Database string `json:"database" yaml:"database"`
	Table    string `json:"table" yaml:"table"`
}

// DSN returns the driver connection string for c.
func (c MySQLConfig) DSN() string {
	return c.driverConfig().FormatDSN()
}

func (c MySQLConfig) driverConfig() *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Addr
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	return cfg
}

// OpenMySQL opens a connection pool, it does not connect yet.
func OpenMySQL(c MySQLConfig) (*sql.DB, error) {
	connector, err := mysql.NewConnector(c.driverConfig())
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MySQLStore inserts one row per record.
type MySQLStore struct {
	db    Execer
	table string
}

func NewMySQLStore(db Execer, table string) (*MySQLStore, error) {
	if table == "" {
		table = "cardx_properties"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &MySQLStore{db: db, table: table}, nil
}

// CreateTable creates the record table unless it exists.
func (s *MySQLStore) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS `"+s.table+"` ("+
		"doc_id CHAR(20) NOT NULL, "+
		"seq INT NOT NULL, "+
		"grp VARCHAR(255) NOT NULL DEFAULT '', "+
		"name VARCHAR(255) NOT NULL, "+
		"params JSON NULL, "+
		"value LONGBLOB NOT NULL, "+
		"created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP, "+
		"PRIMARY KEY (doc_id, seq))")
	return err
}

func (s *MySQLStore) Put(ctx context.Context, rec Record) error {
	var params any
	if len(rec.Params) > 0 {
		b, err := json.Marshal(rec.Params)
		if err != nil {
			return err
		}
		params = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO `"+s.table+"` (doc_id, seq, grp, name, params, value) VALUES (?, ?, ?, ?, ?, ?)",
		rec.DocID, rec.Seq, rec.Group, rec.Name, params, rec.Value)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return fmt.Errorf("record %s/%d already stored: %w", rec.DocID, rec.Seq, err)
		}
		return err
	}
	return nil
}
