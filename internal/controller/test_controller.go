package controller

import (
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// TestController 章节/段落测试与作答
type TestController struct {
	TestService *service.TestService
}

func NewTestController(testService *service.TestService) *TestController {
	return &TestController{TestService: testService}
}

// SubmitAnswersRequest
// swagger:model SubmitAnswersRequest
type SubmitAnswersRequest struct {
	Answers []service.AnswerInput `json:"answers" binding:"dive"`
}

// @Summary 创建测试
// @Tags 测试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateTestInput true "测试及题目"
// @Success 201 {object} util.Response{data=service.TestDetail}
// @Router /api/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var in service.CreateTestInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	test, err := c.TestService.CreateTest(ctx.Request.Context(), actor, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, test)
}

// @Summary 测试列表
// @Tags 测试
// @Produce json
// @Security BearerAuth
// @Param chapterId query int false "章节ID"
// @Param paragraphId query int false "段落ID"
// @Success 200 {object} util.Response{data=[]model.Test}
// @Router /api/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.TestService.ListTests(ctx.Request.Context(), actor, queryUint(ctx, "chapterId"), queryUint(ctx, "paragraphId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 测试详情
// @Description 学生看不到标准答案
// @Tags 测试
// @Produce json
// @Security BearerAuth
// @Param id path int true "测试ID"
// @Success 200 {object} util.Response{data=service.TestDetail}
// @Router /api/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	test, err := c.TestService.GetTest(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// @Summary 启用/停用测试
// @Tags 测试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测试ID"
// @Param body body SetActiveRequest true "状态"
// @Success 200 {object} util.Response
// @Router /api/tests/{id}/active [put]
func (c *TestController) SetActive(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.TestService.SetActive(ctx.Request.Context(), actor, id, *req.Active); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 开始作答
// @Tags 测试
// @Produce json
// @Security BearerAuth
// @Param id path int true "测试ID"
// @Success 201 {object} util.Response{data=model.TestAttempt}
// @Router /api/tests/{id}/attempts [post]
func (c *TestController) StartAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	attempt, err := c.TestService.StartAttempt(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// @Summary 我的作答记录
// @Tags 测试
// @Produce json
// @Security BearerAuth
// @Param id path int true "测试ID"
// @Success 200 {object} util.Response{data=[]model.TestAttempt}
// @Router /api/tests/{id}/attempts [get]
func (c *TestController) ListMyAttempts(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	list, err := c.TestService.ListMyAttempts(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 提交作答
// @Description 自动评分并重新计算掌握度，返回等级变化
// @Tags 测试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Param body body SubmitAnswersRequest true "答案"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 409 {object} util.Response "作答已提交"
// @Router /api/attempts/{id}/submit [post]
func (c *TestController) SubmitAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req SubmitAnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.TestService.SubmitAttempt(ctx.Request.Context(), actor, id, req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 作答详情
// @Tags 测试
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Router /api/attempts/{id} [get]
func (c *TestController) GetAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	result, err := c.TestService.GetAttempt(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 教师更正成绩
// @Description 修改已评分作答的分数并重新计算掌握度
// @Tags 测试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Param body body service.CorrectAttemptInput true "新分数及原因"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Router /api/attempts/{id}/correct [post]
func (c *TestController) CorrectAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.CorrectAttemptInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.TestService.CorrectAttempt(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
