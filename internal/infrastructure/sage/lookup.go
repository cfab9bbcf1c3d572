// Package sage resolves order line items from the Sage 300 order entry tables.
package sage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	// SQL Server and PostgreSQL drivers, selected by sage300.driver
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/config"
)

const (
	// DriverSQLServer is the database/sql driver name registered by go-mssqldb
	DriverSQLServer = "sqlserver"
	// DriverPostgres is the database/sql driver name registered by lib/pq
	DriverPostgres = "postgres"

	defaultPingTimeout  = 10 * time.Second
	defaultQueryTimeout = 30 * time.Second
)

// queries holds the two order entry queries in a driver's dialect
type queries struct {
	header string
	lines  string
}

var dialects = map[string]queries{
	DriverSQLServer: {
		header: "SELECT ORDUNIQ FROM dbo.OEORDH WHERE ORDNUMBER = @p1",
		lines: "SELECT LINENUM, ITEM, [DESC], QTYORDERED, QTYSHIPPED, UNITPRICE " +
			"FROM dbo.OEORDD WHERE ORDUNIQ = @p1 ORDER BY LINENUM",
	},
	DriverPostgres: {
		header: "SELECT orduniq FROM oeordh WHERE ordnumber = $1",
		lines: `SELECT linenum, item, "desc", qtyordered, qtyshipped, unitprice ` +
			"FROM oeordd WHERE orduniq = $1 ORDER BY linenum",
	},
}

// Lookup implements integration.ItemLookup against the OEORDH/OEORDD tables
type Lookup struct {
	db           *sql.DB
	q            queries
	logger       *zap.Logger
	pingTimeout  time.Duration
	queryTimeout time.Duration
}

var _ integration.ItemLookup = (*Lookup)(nil)

// Open opens a connection pool for the configured Sage database.
// The pool connects lazily; call Ping to check reachability.
func Open(cfg config.SageConfig, logger *zap.Logger) (*Lookup, error) {
	driverName := cfg.Driver
	if driverName == "" {
		driverName = DriverSQLServer
	}
	if _, ok := dialects[driverName]; !ok {
		return nil, fmt.Errorf("unsupported sage driver %q", driverName)
	}
	db, err := sql.Open(driverName, cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("open sage database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewLookup(db, driverName, logger)
}

// NewLookup wraps an open database handle
func NewLookup(db *sql.DB, driverName string, logger *zap.Logger) (*Lookup, error) {
	q, ok := dialects[driverName]
	if !ok {
		return nil, fmt.Errorf("unsupported sage driver %q", driverName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lookup{
		db:           db,
		q:            q,
		logger:       logger,
		pingTimeout:  defaultPingTimeout,
		queryTimeout: defaultQueryTimeout,
	}, nil
}

// Close releases the connection pool
func (l *Lookup) Close() error {
	return l.db.Close()
}

// Ping verifies the database can be reached
func (l *Lookup) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.pingTimeout)
	defer cancel()
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrLookupUnavailable, err)
	}
	return nil
}

// Lookup returns the order's lines ordered by line number.
// An unknown order, or one without lines, is integration.ErrLookupMiss.
func (l *Lookup) Lookup(ctx context.Context, orderNo string) ([]integration.LineItem, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, fmt.Errorf("%w: empty order number", integration.ErrLookupMiss)
	}

	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()

	var ordUniq string
	err := l.db.QueryRowContext(ctx, l.q.header, orderNo).Scan(&ordUniq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s not found in Sage 300", integration.ErrLookupMiss, orderNo)
	}
	if err != nil {
		return nil, l.classify(orderNo, err)
	}

	rows, err := l.db.QueryContext(ctx, l.q.lines, strings.TrimSpace(ordUniq))
	if err != nil {
		return nil, l.classify(orderNo, err)
	}
	defer rows.Close()

	var items []integration.LineItem
	for rows.Next() {
		var (
			lineNum                 int
			item, desc              sql.NullString
			ordered, shipped, price decimal.NullDecimal
		)
		if err := rows.Scan(&lineNum, &item, &desc, &ordered, &shipped, &price); err != nil {
			return nil, fmt.Errorf("scan order line for %s: %w", orderNo, err)
		}
		items = append(items, integration.LineItem{
			LineNumber:  lineNum,
			SKU:         strings.TrimSpace(item.String),
			Description: strings.TrimSpace(desc.String),
			QtyOrdered:  ordered.Decimal,
			QtyShipped:  shipped.Decimal,
			UnitPrice:   price.Decimal,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, l.classify(orderNo, err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order %s has no lines in Sage 300", integration.ErrLookupMiss, orderNo)
	}
	l.logger.Debug("Sage 300 lines found",
		zap.String("order_no", orderNo),
		zap.Int("lines", len(items)),
	)
	return items, nil
}

// classify separates a lost connection from a failed query
func (l *Lookup) classify(orderNo string, err error) error {
	if isConnectionError(err) {
		return fmt.Errorf("%w: %v", integration.ErrLookupUnavailable, err)
	}
	return fmt.Errorf("query error for order %s: %w", orderNo, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
