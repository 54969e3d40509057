package controller

import (
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const maxCoverSize = 5 << 20

type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

// CreateTextbook godoc
// @Summary 创建教材
// @Tags 教材
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.TextbookInput true "教材信息"
// @Success 201 {object} util.Response{data=model.Textbook}
// @Failure 403 {object} util.Response "无权限"
// @Router /api/textbooks [post]
func (c *ContentController) CreateTextbook(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var in service.TextbookInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	tb, err := c.ContentService.CreateTextbook(ctx.Request.Context(), actor, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, tb)
}

// ListTextbooks godoc
// @Summary 教材列表
// @Description 全局教材和本校教材
// @Tags 教材
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Textbook}
// @Router /api/textbooks [get]
func (c *ContentController) ListTextbooks(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.ContentService.ListTextbooks(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetTextbook godoc
// @Summary 教材详情
// @Tags 教材
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "教材ID"
// @Success 200 {object} util.Response{data=model.Textbook}
// @Router /api/textbooks/{id} [get]
func (c *ContentController) GetTextbook(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	tb, err := c.ContentService.GetTextbook(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, tb)
}

// UpdateTextbook godoc
// @Summary 更新教材
// @Tags 教材
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "教材ID"
// @Param   body body service.TextbookInput true "教材信息"
// @Success 200 {object} util.Response{data=model.Textbook}
// @Router /api/textbooks/{id} [put]
func (c *ContentController) UpdateTextbook(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.TextbookInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	tb, err := c.ContentService.UpdateTextbook(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, tb)
}

// UploadCover godoc
// @Summary 上传教材封面
// @Tags 教材
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "教材ID"
// @Param   file formData file true "封面图片"
// @Success 200 {object} util.Response{data=model.Textbook}
// @Failure 400 {object} util.Response "文件类型或大小不符"
// @Router /api/textbooks/{id}/cover [post]
func (c *ContentController) UploadCover(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "File is required")
		return
	}
	if file.Size > maxCoverSize {
		util.BadRequest(ctx, "File too large")
		return
	}
	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	tb, err := c.ContentService.UploadCover(ctx.Request.Context(), actor, id, file.Filename, src, file.Size)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, tb)
}

// DeleteTextbook godoc
// @Summary 删除教材
// @Description 连同章节、段落、测试、掌握度等派生数据一起删除
// @Tags 教材
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "教材ID"
// @Success 200 {object} util.Response
// @Router /api/textbooks/{id} [delete]
func (c *ContentController) DeleteTextbook(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.ContentService.DeleteTextbook(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// CreateChapter godoc
// @Summary 创建章节
// @Tags 教材
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "教材ID"
// @Param   body body service.ChapterInput true "章节信息"
// @Success 201 {object} util.Response{data=model.Chapter}
// @Router /api/textbooks/{id}/chapters [post]
func (c *ContentController) CreateChapter(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	textbookID, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.ChapterInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	ch, err := c.ContentService.CreateChapter(ctx.Request.Context(), actor, textbookID, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, ch)
}

// ListChapters godoc
// @Summary 章节列表
// @Tags 教材
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "教材ID"
// @Success 200 {object} util.Response{data=[]model.Chapter}
// @Router /api/textbooks/{id}/chapters [get]
func (c *ContentController) ListChapters(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	textbookID, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	list, err := c.ContentService.ListChapters(ctx.Request.Context(), actor, textbookID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// UpdateChapter godoc
// @Summary 更新章节
// @Tags 教材
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Param   body body service.ChapterInput true "章节信息"
// @Success 200 {object} util.Response{data=model.Chapter}
// @Router /api/chapters/{id} [put]
func (c *ContentController) UpdateChapter(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.ChapterInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	ch, err := c.ContentService.UpdateChapter(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, ch)
}

// DeleteChapter godoc
// @Summary 删除章节
// @Tags 教材
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/chapters/{id} [delete]
func (c *ContentController) DeleteChapter(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.ContentService.DeleteChapter(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// CreateParagraph godoc
// @Summary 创建段落
// @Description 创建后异步建立向量索引
// @Tags 教材
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Param   body body service.ParagraphInput true "段落内容"
// @Success 201 {object} util.Response{data=model.Paragraph}
// @Router /api/chapters/{id}/paragraphs [post]
func (c *ContentController) CreateParagraph(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	chapterID, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.ParagraphInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	p, err := c.ContentService.CreateParagraph(ctx.Request.Context(), actor, chapterID, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, p)
}

// ListParagraphs godoc
// @Summary 段落列表
// @Tags 教材
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Success 200 {object} util.Response{data=[]model.Paragraph}
// @Router /api/chapters/{id}/paragraphs [get]
func (c *ContentController) ListParagraphs(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	chapterID, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	list, err := c.ContentService.ListParagraphs(ctx.Request.Context(), actor, chapterID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetParagraph godoc
// @Summary 段落详情
// @Tags 教材
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "段落ID"
// @Success 200 {object} util.Response{data=model.Paragraph}
// @Router /api/paragraphs/{id} [get]
func (c *ContentController) GetParagraph(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	p, err := c.ContentService.GetParagraph(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, p)
}

// UpdateParagraph godoc
// @Summary 更新段落
// @Tags 教材
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "段落ID"
// @Param   body body service.ParagraphInput true "段落内容"
// @Success 200 {object} util.Response{data=model.Paragraph}
// @Router /api/paragraphs/{id} [put]
func (c *ContentController) UpdateParagraph(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	var in service.ParagraphInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	p, err := c.ContentService.UpdateParagraph(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, p)
}

// DeleteParagraph godoc
// @Summary 删除段落
// @Tags 教材
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "段落ID"
// @Success 200 {object} util.Response
// @Router /api/paragraphs/{id} [delete]
func (c *ContentController) DeleteParagraph(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.ContentService.DeleteParagraph(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
