package database

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quinn/internal/models"
)

// Open connects to Postgres using the db.* config keys and runs migrations.
func Open(logger *zap.Logger) (*gorm.DB, error) {
	viper.BindEnv("db.user", "DB_USER")
	viper.BindEnv("db.password", "DB_PASSWORD")
	viper.BindEnv("db.host", "DB_HOST")
	viper.BindEnv("db.port", "DB_PORT")
	viper.BindEnv("db.name", "DB_NAME")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.user"),
		viper.GetString("db.password"),
		viper.GetString("db.name"),
		viper.GetString("db.sslmode"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info("Database connected successfully",
		zap.String("host", viper.GetString("db.host")),
		zap.String("name", viper.GetString("db.name")))
	return db, nil
}

// Migrate creates or updates the interview tables. The collaborator tables
// (applications, jobs) are owned by the main backend; they are migrated here
// too so the service can run standalone in development.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Job{},
		&models.Application{},
		&models.Interview{},
		&models.InterviewQuestion{},
	)
}
