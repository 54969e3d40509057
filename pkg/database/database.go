package database

import (
	"fmt"
	"log"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models 返回需要迁移的全部表，顺序即依赖顺序
func Models() []interface{} {
	return []interface{}{
		&model.School{},
		&model.User{},
		&model.SchoolClass{},
		&model.ClassStudent{},
		&model.ClassTeacher{},
		&model.Textbook{},
		&model.Chapter{},
		&model.Paragraph{},
		&model.ParagraphEmbedding{},
		&model.Test{},
		&model.TestQuestion{},
		&model.TestAttempt{},
		&model.TestAttemptAnswer{},
		&model.ChapterMastery{},
		&model.ParagraphMastery{},
		&model.MasteryHistory{},
		&model.Homework{},
		&model.HomeworkTask{},
		&model.HomeworkTaskQuestion{},
		&model.StudentTaskSubmission{},
		&model.StudentTaskAnswer{},
		&model.ChatSession{},
		&model.ChatMessage{},
	}
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.PoolSize)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns())
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Println("Database connection established")
	return db, nil
}

// Migrate 执行 AutoMigrate，仅由 migrate 命令或 --auto-migrate 触发
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	log.Println("Database migration completed")
	return nil
}
