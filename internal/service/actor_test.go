package service

import (
	"context"
	"testing"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/testutil"
	"ai_mentor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actorOf(u model.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, SchoolID: u.SchoolID}
}

func TestActorContentRules(t *testing.T) {
	school := uint(1)
	other := uint(2)
	global := &model.Textbook{}
	local := &model.Textbook{SchoolID: &school}

	super := Actor{UserID: 1, Role: model.SuperAdmin}
	admin := Actor{UserID: 2, Role: model.Admin, SchoolID: &school}
	foreign := Actor{UserID: 3, Role: model.Teacher, SchoolID: &other}
	student := Actor{UserID: 4, Role: model.Student, SchoolID: &school}

	assert.NoError(t, super.EditContent(global))
	assert.ErrorIs(t, admin.EditContent(global), util.ErrForbidden)
	assert.NoError(t, admin.EditContent(local))
	assert.ErrorIs(t, foreign.EditContent(local), util.ErrForbidden)
	assert.ErrorIs(t, student.EditContent(local), util.ErrForbidden)

	assert.NoError(t, student.ViewContent(global))
	assert.NoError(t, student.ViewContent(local))
	assert.ErrorIs(t, foreign.ViewContent(local), util.ErrForbidden)
}

func TestAccessClassAndStudent(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db, 1)
	ac := NewAccess(repository.NewSchoolRepository(db))
	ctx := context.Background()

	assert.NoError(t, ac.ManageClass(ctx, actorOf(f.Teacher), &f.Class))
	assert.NoError(t, ac.ManageClass(ctx, actorOf(f.Admin), &f.Class))
	assert.ErrorIs(t, ac.ManageClass(ctx, actorOf(f.Students[0]), &f.Class), util.ErrForbidden)
	assert.NoError(t, ac.ViewClass(ctx, actorOf(f.Students[0]), &f.Class))

	otherTeacher := model.User{SchoolID: &f.School.ID, Email: "t2@example.com", Password: "x", Role: model.Teacher}
	require.NoError(t, db.Create(&otherTeacher).Error)
	assert.ErrorIs(t, ac.ManageClass(ctx, actorOf(otherTeacher), &f.Class), util.ErrForbidden)
	assert.ErrorIs(t, ac.ViewStudent(ctx, actorOf(otherTeacher), &f.Students[0]), util.ErrForbidden)

	assert.NoError(t, ac.ViewStudent(ctx, actorOf(f.Teacher), &f.Students[0]))
	assert.NoError(t, ac.ViewStudent(ctx, actorOf(f.Students[0]), &f.Students[0]))

	var nf *util.NotFoundError
	assert.ErrorAs(t, ac.ViewStudent(ctx, actorOf(f.Admin), &f.Teacher), &nf)
}
