// Package testutil provides in-memory database fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a fresh migrated in-memory SQLite database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// Fixture holds a minimal school with one class, one teacher and students
// plus a textbook with one chapter of two paragraphs.
type Fixture struct {
	School     model.School
	Admin      model.User
	Teacher    model.User
	Students   []model.User
	Class      model.SchoolClass
	Textbook   model.Textbook
	Chapter    model.Chapter
	Paragraphs []model.Paragraph
}

// Seed inserts a Fixture with the given number of students.
func Seed(t *testing.T, db *gorm.DB, students int) *Fixture {
	t.Helper()

	f := &Fixture{}
	f.School = model.School{Name: "School 1", Code: fmt.Sprintf("S%d", time.Now().UnixNano()), IsActive: true}
	require.NoError(t, db.Create(&f.School).Error)

	sid := f.School.ID
	f.Admin = model.User{SchoolID: &sid, Email: fmt.Sprintf("admin-%d@example.com", sid), Password: "x", Role: model.Admin, FirstName: "Ada", LastName: "Admin", IsActive: true}
	require.NoError(t, db.Create(&f.Admin).Error)
	f.Teacher = model.User{SchoolID: &sid, Email: fmt.Sprintf("teacher-%d@example.com", sid), Password: "x", Role: model.Teacher, FirstName: "Tom", LastName: "Teacher", IsActive: true}
	require.NoError(t, db.Create(&f.Teacher).Error)

	f.Class = model.SchoolClass{SchoolID: sid, Name: "7A", GradeLevel: 7, AcademicYear: "2026-2027"}
	require.NoError(t, db.Create(&f.Class).Error)
	require.NoError(t, db.Create(&model.ClassTeacher{ClassID: f.Class.ID, TeacherID: f.Teacher.ID}).Error)

	for i := 0; i < students; i++ {
		s := model.User{SchoolID: &sid, Email: fmt.Sprintf("student-%d-%d@example.com", sid, i), Password: "x", Role: model.Student, FirstName: "Stu", LastName: fmt.Sprintf("%d", i), IsActive: true}
		require.NoError(t, db.Create(&s).Error)
		require.NoError(t, db.Create(&model.ClassStudent{ClassID: f.Class.ID, StudentID: s.ID}).Error)
		f.Students = append(f.Students, s)
	}

	f.Textbook = model.Textbook{SchoolID: &sid, Title: "Algebra 7", Subject: "math", GradeLevel: 7}
	require.NoError(t, db.Create(&f.Textbook).Error)
	f.Chapter = model.Chapter{TextbookID: f.Textbook.ID, Title: "Linear equations", Number: 1}
	require.NoError(t, db.Create(&f.Chapter).Error)
	for i := 1; i <= 2; i++ {
		p := model.Paragraph{ChapterID: f.Chapter.ID, Title: fmt.Sprintf("Paragraph %d", i), Number: i, Content: fmt.Sprintf("Content of paragraph %d about equations.", i)}
		require.NoError(t, db.Create(&p).Error)
		f.Paragraphs = append(f.Paragraphs, p)
	}
	return f
}
