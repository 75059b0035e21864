package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// blank imports register the postgres driver and file source for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrosario/funeraria/internal/models"
)

// ConnectAndMigrate opens the database named by dsn and brings the schema up
// to date. Postgres DSNs go through golang-migrate when MIGRATIONS=1|true,
// with AutoMigrate as the dev fallback; sqlite always uses AutoMigrate.
func ConnectAndMigrate(dsn string) (*gorm.DB, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty, check the environment configuration")
	}
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var db *gorm.DB
	var err error
	if IsPostgres(dsn) {
		for i := 0; i < 10; i++ {
			db, err = gorm.Open(postgres.Open(dsn), cfg)
			if err == nil {
				break
			}
			fmt.Println("Retrying DB connection...", err)
			time.Sleep(2 * time.Second)
		}
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	fmt.Println("[DB] Using DSN:", masked)

	useSQL := false
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		useSQL = true
	}
	if useSQL && IsPostgres(dsn) {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	for _, table := range []string{"users", "service_items", "contracts", "contract_lines", "ledger_entries"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

// AutoMigrate creates the schema from the model structs. Tests use it against
// in-memory sqlite.
func AutoMigrate(db *gorm.DB) error {
	modelsToMigrate := []interface{}{
		&models.User{}, &models.Family{}, &models.Deceased{}, &models.ServiceItem{},
		&models.Contract{}, &models.ContractLine{}, &models.LedgerEntry{},
	}
	for _, m := range modelsToMigrate {
		if migErr := db.AutoMigrate(m); migErr != nil {
			return fmt.Errorf("automigrate %T: %w", m, migErr)
		}
	}
	return nil
}

func seed(db *gorm.DB) {
	baseItems := []models.ServiceItem{
		{Name: "Standard casket", Description: "Varnished wood casket with handles", UnitPrice: decimal.RequireFromString("1200.00")},
		{Name: "Chapel service", Description: "Chapel rental for up to 12 hours", UnitPrice: decimal.RequireFromString("450.00")},
		{Name: "Funeral transport", Description: "Transport within city limits", UnitPrice: decimal.RequireFromString("180.00")},
		{Name: "Floral arrangement", Description: "Standard wreath", UnitPrice: decimal.RequireFromString("95.00")},
	}
	for _, it := range baseItems {
		var existing models.ServiceItem
		if err := db.Where("name = ?", it.Name).First(&existing).Error; err == gorm.ErrRecordNotFound {
			db.Create(&it)
		}
	}
	var admin models.User
	if err := db.Where("email = ?", "admin@funeraria.local").First(&admin).Error; err == gorm.ErrRecordNotFound {
		pass := os.Getenv("ADMIN_PASSWORD")
		if pass == "" {
			pass = "admin"
		}
		hash, herr := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
		if herr == nil {
			db.Create(&models.User{Email: "admin@funeraria.local", Password: string(hash), Name: "Administrator", Role: models.RoleAdmin})
		}
	}
}

// runSQLMigrations executes migrations in ./migrations using the golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
