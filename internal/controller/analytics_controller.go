package controller

import (
	"fmt"
	"strconv"

	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AnalyticsController 教师端班级学情
type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{AnalyticsService: analyticsService}
}

// @Summary 班级掌握度分布
// @Description 每章 A/B/C 与未评估人数
// @Tags 学情分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Param textbookId query int false "教材ID"
// @Success 200 {object} util.Response{data=service.ClassDistribution}
// @Router /api/classes/{id}/analytics/distribution [get]
func (c *AnalyticsController) Distribution(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	dist, err := c.AnalyticsService.ClassDistribution(ctx.Request.Context(), actor, id, queryUint(ctx, "textbookId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, dist)
}

// @Summary 薄弱章节
// @Description C 档占比超过阈值的章节，按占比降序
// @Tags 学情分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Param textbookId query int false "教材ID"
// @Success 200 {object} util.Response{data=[]service.StrugglingTopic}
// @Router /api/classes/{id}/analytics/struggling [get]
func (c *AnalyticsController) Struggling(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	topics, err := c.AnalyticsService.StrugglingTopics(ctx.Request.Context(), actor, id, queryUint(ctx, "textbookId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, topics)
}

// @Summary 掌握度变化趋势
// @Tags 学情分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Param days query int false "统计天数，默认取配置"
// @Success 200 {object} util.Response{data=service.ClassTrend}
// @Router /api/classes/{id}/analytics/trends [get]
func (c *AnalyticsController) Trends(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	days := 0
	if raw := ctx.Query("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			util.BadRequest(ctx, "invalid days")
			return
		}
		days = v
	}
	trend, err := c.AnalyticsService.ClassTrends(ctx.Request.Context(), actor, id, days)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, trend)
}

// @Summary 作业统计
// @Tags 学情分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=service.HomeworkStats}
// @Router /api/homework/{id}/stats [get]
func (c *AnalyticsController) HomeworkStats(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	stats, err := c.AnalyticsService.HomeworkStats(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 学生学情概要
// @Tags 学情分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "学生ID"
// @Success 200 {object} util.Response{data=service.StudentSummary}
// @Router /api/students/{id}/summary [get]
func (c *AnalyticsController) StudentSummary(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	summary, err := c.AnalyticsService.StudentSummary(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary 导出班级掌握度
// @Description 默认直接下载 xlsx；archive=true 时存入对象存储并返回地址
// @Tags 学情分析
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "班级ID"
// @Param textbookId query int false "教材ID"
// @Param archive query bool false "是否归档"
// @Success 200 {file} file
// @Router /api/classes/{id}/analytics/export [get]
func (c *AnalyticsController) Export(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	exp, err := c.AnalyticsService.ExportClassMastery(ctx.Request.Context(), actor, id, queryUint(ctx, "textbookId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	if archive, _ := strconv.ParseBool(ctx.Query("archive")); archive {
		exp, err = c.AnalyticsService.ArchiveExport(ctx.Request.Context(), exp)
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
		if exp.URL != "" {
			util.Success(ctx, exp)
			return
		}
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	ctx.Data(200, exp.ContentType, exp.Data)
}
