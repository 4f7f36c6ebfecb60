package routes

import (
    "github.com/edustack/material-importer/api/handlers"
    "github.com/edustack/material-importer/api/middleware"
    "github.com/gin-gonic/gin"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
    // 全局中间件
    r.Use(middleware.CORS())

    // API 版本组
    v1 := r.Group("/api/v1")

    // 资料导入路由组
    materials := v1.Group("/materials")
    {
        materials.POST("/import", h.Material.ImportMaterial)
        materials.POST("/batch", h.Material.ImportBatch)
        materials.GET("/status/:taskId", h.Material.GetStatus)
        materials.GET("/record/:taskId", h.Material.DownloadRecord)
        materials.DELETE("/task/:taskId", h.Material.CancelTask)
    }
}
