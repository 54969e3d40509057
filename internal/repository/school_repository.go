package repository

import (
	"context"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"gorm.io/gorm"
)

type SchoolRepository struct {
	DB *gorm.DB
}

func NewSchoolRepository(db *gorm.DB) *SchoolRepository {
	return &SchoolRepository{DB: db}
}

func (r *SchoolRepository) WithTx(tx *gorm.DB) *SchoolRepository {
	return &SchoolRepository{DB: tx}
}

func (r *SchoolRepository) Create(ctx context.Context, school *model.School) error {
	if err := r.DB.WithContext(ctx).Create(school).Error; err != nil {
		if util.IsDuplicateKey(err) {
			return util.NewConflictError("school", "code already in use")
		}
		return err
	}
	return nil
}

func (r *SchoolRepository) FindByID(ctx context.Context, id uint) (*model.School, error) {
	var school model.School
	if err := r.DB.WithContext(ctx).First(&school, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "school", id)
	}
	return &school, nil
}

func (r *SchoolRepository) List(ctx context.Context) ([]model.School, error) {
	var schools []model.School
	err := r.DB.WithContext(ctx).Order("name").Find(&schools).Error
	return schools, err
}

func (r *SchoolRepository) Update(ctx context.Context, school *model.School) error {
	return r.DB.WithContext(ctx).Save(school).Error
}

// ---- classes ----

func (r *SchoolRepository) CreateClass(ctx context.Context, class *model.SchoolClass) error {
	return r.DB.WithContext(ctx).Create(class).Error
}

func (r *SchoolRepository) FindClass(ctx context.Context, id uint) (*model.SchoolClass, error) {
	var class model.SchoolClass
	if err := r.DB.WithContext(ctx).First(&class, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "class", id)
	}
	return &class, nil
}

func (r *SchoolRepository) ListClasses(ctx context.Context, schoolID uint) ([]model.SchoolClass, error) {
	var classes []model.SchoolClass
	query := r.DB.WithContext(ctx)
	if schoolID > 0 {
		query = query.Where("school_id = ?", schoolID)
	}
	err := query.Order("grade_level, name").Find(&classes).Error
	return classes, err
}

func (r *SchoolRepository) ListClassesOfTeacher(ctx context.Context, teacherID uint) ([]model.SchoolClass, error) {
	var classes []model.SchoolClass
	err := r.DB.WithContext(ctx).
		Joins("JOIN class_teachers ct ON ct.class_id = school_classes.id").
		Where("ct.teacher_id = ?", teacherID).
		Order("school_classes.grade_level, school_classes.name").
		Find(&classes).Error
	return classes, err
}

// DeleteClass 先删成员关系再删班级
func (r *SchoolRepository) DeleteClass(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_id = ?", id).Delete(&model.ClassStudent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("class_id = ?", id).Delete(&model.ClassTeacher{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.SchoolClass{}, id).Error
	})
}

// ---- memberships ----

func (r *SchoolRepository) AddStudent(ctx context.Context, classID, studentID uint) error {
	err := r.DB.WithContext(ctx).Create(&model.ClassStudent{ClassID: classID, StudentID: studentID}).Error
	if util.IsDuplicateKey(err) {
		return util.NewConflictError("class membership", "student already in class")
	}
	return err
}

func (r *SchoolRepository) RemoveStudent(ctx context.Context, classID, studentID uint) error {
	return r.DB.WithContext(ctx).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		Delete(&model.ClassStudent{}).Error
}

func (r *SchoolRepository) AddTeacher(ctx context.Context, classID, teacherID uint) error {
	err := r.DB.WithContext(ctx).Create(&model.ClassTeacher{ClassID: classID, TeacherID: teacherID}).Error
	if util.IsDuplicateKey(err) {
		return util.NewConflictError("class membership", "teacher already assigned")
	}
	return err
}

func (r *SchoolRepository) IsTeacherOfClass(ctx context.Context, teacherID, classID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.ClassTeacher{}).
		Where("class_id = ? AND teacher_id = ?", classID, teacherID).
		Count(&count).Error
	return count > 0, err
}

func (r *SchoolRepository) IsStudentInClass(ctx context.Context, studentID, classID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.ClassStudent{}).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		Count(&count).Error
	return count > 0, err
}

// TeacherHasStudent 学生是否在该教师任教的任一班级
func (r *SchoolRepository) TeacherHasStudent(ctx context.Context, teacherID, studentID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.ClassStudent{}).
		Joins("JOIN class_teachers ct ON ct.class_id = class_students.class_id").
		Where("ct.teacher_id = ? AND class_students.student_id = ?", teacherID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *SchoolRepository) StudentIDsOfClass(ctx context.Context, classID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.ClassStudent{}).
		Where("class_id = ?", classID).
		Order("student_id").
		Pluck("student_id", &ids).Error
	return ids, err
}

func (r *SchoolRepository) ClassIDsOfStudent(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.ClassStudent{}).
		Where("student_id = ?", studentID).
		Pluck("class_id", &ids).Error
	return ids, err
}
