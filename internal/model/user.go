package model

type UserRole string

const (
	SuperAdmin UserRole = "super_admin"
	Admin      UserRole = "admin"
	Teacher    UserRole = "teacher"
	Student    UserRole = "student"
)

func (r UserRole) Valid() bool {
	switch r {
	case SuperAdmin, Admin, Teacher, Student:
		return true
	}
	return false
}

// swagger:model School
type School struct {
	BaseModel
	Name     string `gorm:"size:255;not null" json:"name"`
	Code     string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	IsActive bool   `gorm:"default:true" json:"isActive"`
}

func (School) TableName() string {
	return "schools"
}

// swagger:model User
type User struct {
	BaseModel
	SchoolID  *uint    `gorm:"index" json:"schoolId"`
	Email     string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string   `gorm:"size:100;not null" json:"-"`
	Role      UserRole `gorm:"size:20;not null;default:'student'" json:"role"`
	FirstName string   `gorm:"size:100" json:"firstName"`
	LastName  string   `gorm:"size:100" json:"lastName"`
	IsActive  bool     `gorm:"default:true" json:"isActive"`
}

func (User) TableName() string {
	return "users"
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// swagger:model SchoolClass
type SchoolClass struct {
	BaseModel
	SchoolID     uint   `gorm:"index;not null" json:"schoolId"`
	Name         string `gorm:"size:100;not null" json:"name"`
	GradeLevel   int    `json:"gradeLevel"`
	AcademicYear string `gorm:"size:20" json:"academicYear"`
}

func (SchoolClass) TableName() string {
	return "school_classes"
}

type ClassStudent struct {
	Record
	ClassID   uint `gorm:"uniqueIndex:idx_class_student;not null" json:"classId"`
	StudentID uint `gorm:"uniqueIndex:idx_class_student;index;not null" json:"studentId"`
}

func (ClassStudent) TableName() string {
	return "class_students"
}

type ClassTeacher struct {
	Record
	ClassID   uint `gorm:"uniqueIndex:idx_class_teacher;not null" json:"classId"`
	TeacherID uint `gorm:"uniqueIndex:idx_class_teacher;index;not null" json:"teacherId"`
}

func (ClassTeacher) TableName() string {
	return "class_teachers"
}
