// @title AI Mentor 后端 API
// @version 1.0
// @description 多学校教学平台：掌握度分级、作业批改、AI 出题、学情分析与教材问答。

// @contact.name API支持

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"os"

	"ai_mentor_backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
