package stor

import (
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/snapify/snapify/pkg/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SqliteInMemoryDSN is the DSN tests use for an isolated in-memory database.
const SqliteInMemoryDSN = "file::memory:?cache=shared"

// RunMigrations creates the pipeline's durable tables. Production schemas
// are managed externally; this exists for sqlite dev/test databases.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(&model.MediaAsset{})
}

func MakeDSNFromEnv() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		os.Getenv("DB_USERNAME"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_DATABASE"))
}

const maxDBRetries = 5

// MustConnectToDB retries the database connection maxDBRetries times and
// exits the process if it never succeeds. When DB_ADAPTER is sqlite it opens
// the file named by DB_DATABASE instead, which is how dev deployments run.
func MustConnectToDB() *gorm.DB {
	var (
		err error
		db  *gorm.DB
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	if os.Getenv("DB_ADAPTER") == "sqlite" {
		db, err = gorm.Open(sqlite.Open(os.Getenv("DB_DATABASE")), gormConfig)
		if err != nil {
			log.Fatalf("Failed to open sqlite db (%s): %s", os.Getenv("DB_DATABASE"), err)
		}
		return db
	}

	retryCount := 1
	for {
		db, err = gorm.Open(mysql.Open(MakeDSNFromEnv()), gormConfig)
		switch {
		case err == nil:
			return db
		case retryCount >= maxDBRetries:
			log.Fatalf("Failed to open db (%s): %s", MakeDSNFromEnv(), err)
		default:
			retryCount++
			time.Sleep(3 * time.Second)
		}
	}
}
