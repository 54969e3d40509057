package app

import (
	"ai_mentor_backend/docs"
	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/middleware"
	"ai_mentor_backend/internal/model"

	"ai_mentor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// 学生/通用 授权接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		a.registerTeacherRoutes(authGroup, c)

		// 3. 管理员相关接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/login", c.auth.Login)
	}
}

// registerStudentRoutes 所有登录用户可访问，细粒度权限由服务层校验
func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/me", c.auth.Me)
	rg.PUT("/me/password", c.auth.ChangePassword)
	rg.GET("/me/mastery", c.mastery.GetMyMastery)
	rg.GET("/ws", c.notification.Connect)

	// 教材
	rg.GET("/textbooks", c.content.ListTextbooks)
	rg.GET("/textbooks/:id", c.content.GetTextbook)
	rg.GET("/textbooks/:id/chapters", c.content.ListChapters)
	rg.GET("/chapters/:id/paragraphs", c.content.ListParagraphs)
	rg.GET("/paragraphs/:id", c.content.GetParagraph)

	// 测验
	rg.GET("/tests", c.test.ListTests)
	rg.GET("/tests/:id", c.test.GetTest)
	rg.POST("/tests/:id/attempts", c.test.StartAttempt)
	rg.GET("/tests/:id/attempts", c.test.ListMyAttempts)
	rg.POST("/attempts/:id/submit", c.test.SubmitAttempt)
	rg.GET("/attempts/:id", c.test.GetAttempt)

	// 掌握度
	rg.GET("/students/:id/mastery", c.mastery.GetStudentMastery)
	rg.GET("/students/:id/mastery/history", c.mastery.GetHistory)
	rg.GET("/students/:id/summary", c.analytics.StudentSummary)

	// 作业
	rg.GET("/homework", c.homework.ListHomework)
	rg.GET("/homework/:id", c.homework.GetHomework)
	rg.GET("/homework/:id/submissions/me", c.submission.ListMySubmissions)
	rg.POST("/homework-tasks/:id/start", c.submission.StartTask)
	rg.PUT("/submissions/:id/answers", c.submission.SaveAnswer)
	rg.POST("/submissions/:id/submit", c.submission.SubmitTask)
	rg.GET("/submissions/:id", c.submission.GetSubmission)

	// 学习助手
	chat := rg.Group("/chat")
	{
		chat.POST("/sessions", c.chat.CreateSession)
		chat.GET("/sessions", c.chat.ListSessions)
		chat.GET("/sessions/:id", c.chat.GetSession)
		chat.DELETE("/sessions/:id", c.chat.DeleteSession)
		chat.POST("/sessions/:id/messages", c.chat.Ask)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		// 班级
		teacher.GET("/classes", c.school.ListClasses)
		teacher.GET("/classes/:id", c.school.GetClass)
		teacher.GET("/classes/:id/students", c.school.Roster)

		// 教材维护
		teacher.POST("/textbooks", c.content.CreateTextbook)
		teacher.PUT("/textbooks/:id", c.content.UpdateTextbook)
		teacher.POST("/textbooks/:id/cover", c.content.UploadCover)
		teacher.DELETE("/textbooks/:id", c.content.DeleteTextbook)
		teacher.POST("/textbooks/:id/chapters", c.content.CreateChapter)
		teacher.PUT("/chapters/:id", c.content.UpdateChapter)
		teacher.DELETE("/chapters/:id", c.content.DeleteChapter)
		teacher.POST("/chapters/:id/paragraphs", c.content.CreateParagraph)
		teacher.PUT("/paragraphs/:id", c.content.UpdateParagraph)
		teacher.DELETE("/paragraphs/:id", c.content.DeleteParagraph)

		// 测验
		teacher.POST("/tests", c.test.CreateTest)
		teacher.PUT("/tests/:id/active", c.test.SetActive)
		teacher.POST("/attempts/:id/correct", c.test.CorrectAttempt)

		// 作业编排
		teacher.POST("/homework", c.homework.CreateHomework)
		teacher.PUT("/homework/:id", c.homework.UpdateHomework)
		teacher.POST("/homework/:id/publish", c.homework.Publish)
		teacher.POST("/homework/:id/close", c.homework.Close)
		teacher.POST("/homework/:id/tasks", c.homework.AddTask)
		teacher.POST("/homework-tasks/:id/questions", c.homework.AddQuestions)
		teacher.POST("/homework-tasks/:id/generate", c.homework.GenerateQuestions)
		teacher.DELETE("/homework-questions/:id", c.homework.DeleteQuestion)

		// 批改
		teacher.GET("/homework/:id/review-queue", c.submission.ReviewQueue)
		teacher.POST("/answers/:id/review", c.submission.ReviewAnswer)
		teacher.POST("/submissions/:id/ai-grade", c.submission.AIGrade)

		// 学情分析
		teacher.GET("/homework/:id/stats", c.analytics.HomeworkStats)
		teacher.GET("/classes/:id/analytics/distribution", c.analytics.Distribution)
		teacher.GET("/classes/:id/analytics/struggling", c.analytics.Struggling)
		teacher.GET("/classes/:id/analytics/trends", c.analytics.Trends)
		teacher.GET("/classes/:id/analytics/export", c.analytics.Export)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/users", c.user.CreateUser)
		admin.GET("/users", c.user.GetUsers)
		admin.GET("/users/:id", c.user.GetUser)
		admin.PUT("/users/:id/active", c.user.SetActive)

		// 学校只有超级管理员能创建，服务层再校验
		admin.POST("/schools", c.school.CreateSchool)
		admin.GET("/schools", c.school.ListSchools)

		admin.POST("/classes", c.school.CreateClass)
		admin.DELETE("/classes/:id", c.school.DeleteClass)
		admin.POST("/classes/:id/members", c.school.AddMember)
		admin.DELETE("/classes/:id/students/:studentId", c.school.RemoveStudent)
	}
}
