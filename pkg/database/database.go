package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/rfberaldo/sqlz"
	"github.com/rfberaldo/sqlz/binds"
)

//go:embed sql-migrations
var sqlMigrationsFs embed.FS

/*
TimestampLayout is how every DATETIME column is written. It is fixed width
and UTC so deadline comparisons can be done in SQL.
*/
const TimestampLayout = "2006-01-02 15:04:05"

const sqliteBusyCode = 5

var registerBinds sync.Once

var defaultPragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
}

/*
Open connects to the SQLite database described by dsn and applies every
migration script.
*/
func Open(dsn string) (*sqlz.DB, error) {
	var (
		err error
		db  *sqlz.DB
	)

	registerBinds.Do(func() {
		binds.Register("sqlite", binds.BindByDriver("sqlite3"))
	})

	if db, err = sqlz.Connect("sqlite", WithPragmas(dsn)); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err = Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

/*
WithPragmas appends the connection pragmas to dsn. They are set through the
DSN so every pooled connection gets them, not just the first one.
*/
func WithPragmas(dsn string) string {
	result := dsn

	for _, pragma := range defaultPragmas {
		name := strings.SplitN(pragma, "(", 2)[0]

		if strings.Contains(dsn, name+"(") {
			continue
		}

		if strings.Contains(result, "?") {
			result += "&" + pragma
		} else {
			result += "?" + pragma
		}
	}

	return result
}

func Migrate(db *sqlz.DB) error {
	var (
		err  error
		dirs []fs.DirEntry
		b    []byte
	)

	if dirs, err = sqlMigrationsFs.ReadDir("sql-migrations"); err != nil {
		return fmt.Errorf("error reading migrations: %w", err)
	}

	for _, d := range dirs {
		if d.IsDir() || !strings.HasPrefix(d.Name(), "commit") {
			continue
		}

		if b, err = fs.ReadFile(sqlMigrationsFs, path.Join("sql-migrations", d.Name())); err != nil {
			return fmt.Errorf("error reading migration %s: %w", d.Name(), err)
		}

		if err = runSqlScript(db, b); err != nil && !isIgnorableError(err) {
			return fmt.Errorf("error applying migration %s: %w", d.Name(), err)
		}
	}

	return nil
}

func runSqlScript(db *sqlz.DB, script []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	_, err := db.Exec(ctx, string(script))
	return err
}

func isIgnorableError(err error) bool {
	return strings.Contains(err.Error(), "duplicate column")
}

func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

/*
IsBusy reports whether err is SQLite telling us another writer holds the
lock. Such failures are worth retrying on the next request or sweep.
*/
func IsBusy(err error) bool {
	if err == nil {
		return false
	}

	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

/*
IsUniqueViolation reports a UNIQUE constraint failure, used to retry access
code generation on collision.
*/
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
