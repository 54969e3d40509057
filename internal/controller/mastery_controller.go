package controller

import (
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MasteryController struct {
	MasteryService *service.MasteryService
}

func NewMasteryController(masteryService *service.MasteryService) *MasteryController {
	return &MasteryController{MasteryService: masteryService}
}

// @Summary 学生掌握度
// @Description 章节与段落等级及活跃度
// @Tags 掌握度
// @Produce json
// @Security BearerAuth
// @Param id path int true "学生ID"
// @Success 200 {object} util.Response{data=service.StudentMastery}
// @Router /api/students/{id}/mastery [get]
func (c *MasteryController) GetStudentMastery(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	m, err := c.MasteryService.GetStudentMastery(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, m)
}

// @Summary 我的掌握度
// @Tags 掌握度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.StudentMastery}
// @Router /api/me/mastery [get]
func (c *MasteryController) GetMyMastery(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	m, err := c.MasteryService.GetStudentMastery(ctx.Request.Context(), actor, actor.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, m)
}

// @Summary 掌握度变化历史
// @Tags 掌握度
// @Produce json
// @Security BearerAuth
// @Param id path int true "学生ID"
// @Param unitType query string true "chapter 或 paragraph"
// @Param unitId query int true "章节或段落ID"
// @Success 200 {object} util.Response{data=[]model.MasteryHistory}
// @Router /api/students/{id}/mastery/history [get]
func (c *MasteryController) GetHistory(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	unit := model.UnitType(ctx.Query("unitType"))
	if unit != model.UnitChapter && unit != model.UnitParagraph {
		util.BadRequest(ctx, "unitType must be chapter or paragraph")
		return
	}
	unitID := queryUint(ctx, "unitId")
	if unitID == 0 {
		util.BadRequest(ctx, "invalid unitId")
		return
	}
	history, err := c.MasteryService.GetHistory(ctx.Request.Context(), actor, id, unit, unitID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, history)
}
