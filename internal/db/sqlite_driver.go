package db

import (
	"crypto/sha3"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

// SQLiteDriverName is SQLCipher with the sha3() SQL function registered.
const SQLiteDriverName = "sqlite3_notesaas"

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			err := conn.RegisterFunc("sha3", sqlSHA3, true)
			if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
				return fmt.Errorf("register sha3(): %w", err)
			}
			return nil
		},
	})
}

// sqlSHA3 backs sha3(token, 256) in the session queries so the cookie
// value is hashed before it is compared or stored.
func sqlSHA3(input any, bits int64) ([]byte, error) {
	if bits != 256 {
		return nil, fmt.Errorf("sha3: only 256-bit digests are used, got %d", bits)
	}
	switch v := input.(type) {
	case string:
		return HashToken(v), nil
	case []byte:
		sum := sha3.Sum256(v)
		return sum[:], nil
	case nil:
		sum := sha3.Sum256(nil)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("sha3: unsupported input %T", input)
	}
}

// HashToken is the Go side of sha3(?, 256).
func HashToken(token string) []byte {
	sum := sha3.Sum256([]byte(token))
	return sum[:]
}

// encryptedDSN keys a SQLCipher connection string. target is a file path
// or a file: URI; extra is appended as further query parameters.
func encryptedDSN(target string, key []byte, extra string) string {
	dsn := target
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma_key=x'" + hex.EncodeToString(key) + "'&_pragma_cipher_page_size=4096"
	if extra != "" {
		dsn += "&" + extra
	}
	return dsn
}

// OpenEncrypted opens target with key, checks the key on a real read and
// applies the schema. maxIdle must be at least 1 for shared-cache memory
// databases, which vanish with their last connection.
func OpenEncrypted(target string, key []byte, extra string, maxIdle int) (*DB, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("database key must be exactly %d bytes, got %d", KeySize, len(key))
	}
	sqlDB, err := sql.Open(SQLiteDriverName, encryptedDSN(target, key, extra))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdle)

	// A wrong key only shows up on the first real read.
	if err := sqlDB.QueryRow("SELECT count(*) FROM sqlite_master").Scan(new(int64)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("verify database key: %w", err)
	}
	if err := ApplySchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return NewFromSQL(sqlDB), nil
}
