package controller

import (
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// HomeworkController 作业编排、发布与 AI 出题
type HomeworkController struct {
	HomeworkService   *service.HomeworkService
	GenerationService *service.GenerationService
}

func NewHomeworkController(homeworkService *service.HomeworkService, generationService *service.GenerationService) *HomeworkController {
	return &HomeworkController{HomeworkService: homeworkService, GenerationService: generationService}
}

// AddQuestionsRequest
// swagger:model AddQuestionsRequest
type AddQuestionsRequest struct {
	Questions []service.QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// @Summary 创建作业
// @Description 新作业为草稿状态
// @Tags 作业
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.HomeworkInput true "作业信息"
// @Success 201 {object} util.Response{data=model.Homework}
// @Router /api/homework [post]
func (c *HomeworkController) CreateHomework(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var in service.HomeworkInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	hw, err := c.HomeworkService.CreateHomework(ctx.Request.Context(), actor, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, hw)
}

// @Summary 作业列表
// @Description 学生只看到所在班级已发布的作业
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param status query string false "draft/published/closed"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/homework [get]
func (c *HomeworkController) ListHomework(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	page, limit := util.ParsePagination(ctx)
	list, total, err := c.HomeworkService.ListHomework(ctx.Request.Context(), actor, model.HomeworkStatus(ctx.Query("status")), page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

// @Summary 作业详情
// @Description 包含任务和题目，学生视角隐藏答案
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=service.HomeworkDetail}
// @Router /api/homework/{id} [get]
func (c *HomeworkController) GetHomework(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	detail, err := c.HomeworkService.GetHomework(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 更新作业
// @Tags 作业
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Param body body service.HomeworkInput true "作业信息"
// @Success 200 {object} util.Response{data=model.Homework}
// @Failure 409 {object} util.Response "作业已关闭"
// @Router /api/homework/{id} [put]
func (c *HomeworkController) UpdateHomework(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.HomeworkInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	hw, err := c.HomeworkService.UpdateHomework(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, hw)
}

// @Summary 发布作业
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=model.Homework}
// @Failure 400 {object} util.Response "存在没有题目的任务"
// @Failure 409 {object} util.Response "状态不允许"
// @Router /api/homework/{id}/publish [post]
func (c *HomeworkController) Publish(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	hw, err := c.HomeworkService.Publish(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, hw)
}

// @Summary 关闭作业
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=model.Homework}
// @Router /api/homework/{id}/close [post]
func (c *HomeworkController) Close(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	hw, err := c.HomeworkService.Close(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, hw)
}

// @Summary 添加任务
// @Tags 作业
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Param body body service.TaskInput true "任务信息"
// @Success 201 {object} util.Response{data=model.HomeworkTask}
// @Router /api/homework/{id}/tasks [post]
func (c *HomeworkController) AddTask(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.TaskInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	task, err := c.HomeworkService.AddTask(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, task)
}

// @Summary 添加题目
// @Description 全部通过校验才写入
// @Tags 作业
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "任务ID"
// @Param body body AddQuestionsRequest true "题目"
// @Success 201 {object} util.Response{data=[]model.HomeworkTaskQuestion}
// @Router /api/homework-tasks/{id}/questions [post]
func (c *HomeworkController) AddQuestions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req AddQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	questions, err := c.HomeworkService.AddQuestions(ctx.Request.Context(), actor, id, req.Questions)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, questions)
}

// @Summary AI 生成题目
// @Description 根据任务关联段落生成题目；模型输出不合法时返回 422，不重试
// @Tags 作业
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "任务ID"
// @Param body body service.GenerateQuestionsInput true "生成参数"
// @Success 201 {object} util.Response{data=[]model.HomeworkTaskQuestion}
// @Failure 422 {object} util.Response "模型输出不合法"
// @Failure 502 {object} util.Response "模型服务不可用"
// @Router /api/homework-tasks/{id}/generate [post]
func (c *HomeworkController) GenerateQuestions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.GenerateQuestionsInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	questions, err := c.GenerationService.GenerateQuestions(ctx.Request.Context(), actor, id, in)
	if err != nil {
		handleLLMError(ctx, err)
		return
	}
	util.Created(ctx, questions)
}

// @Summary 删除题目
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/homework-questions/{id} [delete]
func (c *HomeworkController) DeleteQuestion(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.HomeworkService.DeleteQuestion(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
