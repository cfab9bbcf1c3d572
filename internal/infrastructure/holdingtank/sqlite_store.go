package holdingtank

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/logger"
	"github.com/qpss/middleware/internal/infrastructure/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteFileName is the database file created in the holding tank folder
const SQLiteFileName = "holding_tank.db"

// holdingRecordModel is one row of holding_records. The full record is kept
// as JSON; the other columns serve lookups and the age scan.
type holdingRecordModel struct {
	ShipmentID  string `gorm:"column:shipment_id;primaryKey"`
	OrderNumber string `gorm:"column:order_number;not null"`
	Account     string `gorm:"column:account;not null"`
	// unix nanoseconds
	CreatedAtNanos int64  `gorm:"column:created_at;not null"`
	Record         string `gorm:"column:record;not null"`
}

// TableName returns the table name for GORM
func (holdingRecordModel) TableName() string {
	return "holding_records"
}

func (m holdingRecordModel) createdAt() time.Time {
	return time.Unix(0, m.CreatedAtNanos)
}

// SQLiteStore keeps holding records in a single-table SQLite database.
// Each Save is one upsert statement, so a crash never leaves a partial record.
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ integration.HoldingTank = (*SQLiteStore)(nil)

// OpenSQLite creates or opens the database at path and migrates it to the current schema
func OpenSQLite(path string, zapLogger *zap.Logger) (*SQLiteStore, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open holding tank database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to holding tank database: %w", err)
	}

	// single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	migrator, err := migration.New(sqlDB, migrations, "migrations", zapLogger)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate holding tank database: %w", err)
	}

	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName("holding_tank"),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Save upserts rec by shipment ID
func (s *SQLiteStore) Save(ctx context.Context, rec *integration.HoldingRecord) error {
	if !integration.IsValidShipmentID(rec.ShipmentID) {
		return fmt.Errorf("invalid shipment id %q", rec.ShipmentID)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode holding record %s: %w", rec.ShipmentID, err)
	}
	model := holdingRecordModel{
		ShipmentID:     rec.ShipmentID,
		OrderNumber:    rec.OrderNumber,
		Account:        rec.Account.String(),
		CreatedAtNanos: rec.CreatedAt.UnixNano(),
		Record:         string(data),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shipment_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("save holding record %s: %w", rec.ShipmentID, err)
	}
	return nil
}

// Load reads the record for shipmentID
func (s *SQLiteStore) Load(ctx context.Context, shipmentID string) (*integration.HoldingRecord, error) {
	var model holdingRecordModel
	err := s.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", integration.ErrHoldingRecordNotFound, shipmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("read holding record %s: %w", shipmentID, err)
	}
	var rec integration.HoldingRecord
	if err := json.Unmarshal([]byte(model.Record), &rec); err != nil {
		return nil, fmt.Errorf("decode holding record %s: %w", shipmentID, err)
	}
	return &rec, nil
}

// Delete removes the record; a missing record is not an error
func (s *SQLiteStore) Delete(ctx context.Context, shipmentID string) error {
	err := s.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Delete(&holdingRecordModel{}).Error
	if err != nil {
		return fmt.Errorf("delete holding record %s: %w", shipmentID, err)
	}
	return nil
}

// ListOlderThan returns records created more than age ago, by shipment ID
func (s *SQLiteStore) ListOlderThan(ctx context.Context, age time.Duration) ([]integration.StaleRecord, error) {
	now := s.now()
	var models []holdingRecordModel
	err := s.db.WithContext(ctx).
		Select("shipment_id", "order_number", "created_at").
		Where("created_at < ?", now.Add(-age).UnixNano()).
		Order("shipment_id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list holding tank: %w", err)
	}

	var stale []integration.StaleRecord
	for _, m := range models {
		stale = append(stale, integration.StaleRecord{
			ShipmentID:  m.ShipmentID,
			OrderNumber: m.OrderNumber,
			Age:         now.Sub(m.createdAt()),
		})
	}
	return stale, nil
}
