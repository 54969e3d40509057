package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// mysqlDryRun 只生成 SQL，不连接数据库
func mysqlDryRun(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "ai_mentor:secret@tcp(127.0.0.1:3306)/ai_mentor?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var statements []string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture", func(d *gorm.DB) {
		statements = append(statements, d.Statement.SQL.String())
	}))
	return db, &statements
}

func TestSubmitPathTakesRowLocks(t *testing.T) {
	db, statements := mysqlDryRun(t)
	ctx := context.Background()

	_, _ = NewSubmissionRepository(db).FindForUpdate(ctx, 1)
	_, _ = NewHomeworkRepository(db).FindForShare(ctx, 2)
	_, _ = NewHomeworkRepository(db).FindByID(ctx, 2)

	require.Len(t, *statements, 3)
	assert.Contains(t, (*statements)[0], "FOR UPDATE")
	assert.Contains(t, (*statements)[1], "FOR SHARE")
	assert.NotContains(t, (*statements)[2], "FOR ")
}
