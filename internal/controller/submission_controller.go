package controller

import (
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// SubmissionController 学生作答与教师批改
type SubmissionController struct {
	SubmissionService *service.SubmissionService
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{SubmissionService: submissionService}
}

// @Summary 开始任务
// @Description 重复调用返回同一条进行中的提交
// @Tags 作业提交
// @Produce json
// @Security BearerAuth
// @Param id path int true "任务ID"
// @Success 200 {object} util.Response{data=model.StudentTaskSubmission}
// @Router /api/homework-tasks/{id}/start [post]
func (c *SubmissionController) StartTask(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	sub, err := c.SubmissionService.StartTask(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// @Summary 保存单题作答
// @Tags 作业提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "提交ID"
// @Param body body service.AnswerInput true "作答"
// @Success 200 {object} util.Response{data=model.StudentTaskAnswer}
// @Router /api/submissions/{id}/answers [put]
func (c *SubmissionController) SaveAnswer(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.AnswerInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	answer, err := c.SubmissionService.SaveAnswer(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// @Summary 提交任务
// @Description 客观题立即判分，主观题等待批改；截止后提交按迟交扣分
// @Tags 作业提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "提交ID"
// @Param body body SubmitAnswersRequest false "最后一次保存的作答"
// @Success 200 {object} util.Response{data=service.SubmissionDetail}
// @Failure 409 {object} util.Response "已提交或作业已关闭"
// @Router /api/submissions/{id}/submit [post]
func (c *SubmissionController) SubmitTask(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req SubmitAnswersRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	detail, err := c.SubmissionService.SubmitTask(ctx.Request.Context(), actor, id, req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 提交详情
// @Tags 作业提交
// @Produce json
// @Security BearerAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=service.SubmissionDetail}
// @Router /api/submissions/{id} [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	detail, err := c.SubmissionService.GetSubmission(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 我的提交
// @Tags 作业提交
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=[]model.StudentTaskSubmission}
// @Router /api/homework/{id}/submissions/me [get]
func (c *SubmissionController) ListMySubmissions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	list, err := c.SubmissionService.ListMySubmissions(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 待批改列表
// @Tags 作业提交
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/homework/{id}/review-queue [get]
func (c *SubmissionController) ReviewQueue(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	page, limit := util.ParsePagination(ctx)
	items, total, err := c.SubmissionService.ListReviewQueue(ctx.Request.Context(), actor, id, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: items, Total: total, Page: page, Limit: limit})
}

// @Summary 教师批改单题
// @Description 覆盖 AI 评分，分数不能超过题目分值
// @Tags 作业提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Param body body service.ReviewInput true "评分"
// @Success 200 {object} util.Response{data=service.SubmissionDetail}
// @Router /api/answers/{id}/review [post]
func (c *SubmissionController) ReviewAnswer(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.ReviewInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	detail, err := c.SubmissionService.ReviewAnswer(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary AI 批改
// @Description 对尚未评分的主观题调用模型评分
// @Tags 作业提交
// @Produce json
// @Security BearerAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=service.SubmissionDetail}
// @Failure 502 {object} util.Response "模型服务不可用"
// @Router /api/submissions/{id}/ai-grade [post]
func (c *SubmissionController) AIGrade(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	detail, err := c.SubmissionService.AIGradeSubmission(ctx.Request.Context(), actor, id)
	if err != nil {
		handleLLMError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}
