package handlers

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "path/filepath"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/internal/service/material"
    "github.com/edustack/material-importer/pkg/logger"
    "github.com/gin-gonic/gin"
)

type MaterialHandler struct {
    importer material.MaterialImporter
    logger   logger.Logger
}

// ImportResponse 定义导入响应结构
type ImportResponse struct {
    TaskID    string `json:"taskId"`
    Status    string `json:"status"`
    Filename  string `json:"filename"`
    FileSize  int64  `json:"fileSize"`
    FileType  string `json:"fileType"`
    CreatedAt string `json:"createdAt"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
    Error   string `json:"error"`
    Code    string `json:"code,omitempty"`
    Message string `json:"message"`
}

func NewMaterialHandler(importer material.MaterialImporter, logger logger.Logger) *MaterialHandler {
    return &MaterialHandler{
        importer: importer,
        logger:   logger,
    }
}

// ImportMaterial 导入单个资料文件
func (h *MaterialHandler) ImportMaterial(c *gin.Context) {
    file, header, err := c.Request.FormFile("file")
    if err != nil {
        h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
        return
    }
    defer file.Close()

    materialID := c.PostForm("materialId")

    task, err := h.importer.ImportFile(c.Request.Context(), file, header, materialID)
    if err != nil {
        h.handleError(c, statusFor(err), "Failed to import file", err)
        return
    }

    c.JSON(http.StatusOK, ImportResponse{
        TaskID:    task.ID,
        Status:    string(task.Status),
        Filename:  header.Filename,
        FileSize:  header.Size,
        FileType:  filepath.Ext(header.Filename),
        CreatedAt: task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
    })
}

// ImportBatch 批量导入资料
func (h *MaterialHandler) ImportBatch(c *gin.Context) {
    form, err := c.MultipartForm()
    if err != nil {
        h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
        return
    }

    files := form.File["files"]
    if len(files) == 0 {
        h.handleError(c, http.StatusBadRequest, "No files provided", nil)
        return
    }

    materialID := c.PostForm("materialId")

    tasks, err := h.importer.ImportBatch(c.Request.Context(), files, materialID)
    if err != nil {
        h.handleError(c, statusFor(err), "Failed to import files", err)
        return
    }

    responses := make([]ImportResponse, len(tasks))
    for i, task := range tasks {
        responses[i] = ImportResponse{
            TaskID:    task.ID,
            Status:    string(task.Status),
            Filename:  task.Metadata["filename"],
            CreatedAt: task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
        }
    }

    c.JSON(http.StatusOK, gin.H{
        "message": fmt.Sprintf("Importing %d materials", len(tasks)),
        "tasks":   responses,
    })
}

// GetStatus 获取导入状态
func (h *MaterialHandler) GetStatus(c *gin.Context) {
    taskID := c.Param("taskId")
    if taskID == "" {
        h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
        return
    }

    task, err := h.importer.GetImportStatus(c.Request.Context(), taskID)
    if err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to get status", err)
        return
    }

    c.JSON(http.StatusOK, gin.H{
        "taskId":    task.ID,
        "status":    string(task.Status),
        "progress":  task.Progress,
        "error":     task.Error,
        "metadata":  task.Metadata,
        "createdAt": task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
        "updatedAt": task.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
    })
}

// DownloadRecord 下载导入结果记录
func (h *MaterialHandler) DownloadRecord(c *gin.Context) {
    taskID := c.Param("taskId")
    if taskID == "" {
        h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
        return
    }

    record, err := h.importer.GetMaterialRecord(c.Request.Context(), taskID)
    if err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to get record", err)
        return
    }

    // 将结果转换为 JSON
    recordJSON, err := json.Marshal(record)
    if err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to serialize record", err)
        return
    }

    filename := fmt.Sprintf("material_%s.json", taskID)
    c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
    c.Data(http.StatusOK, "application/json", recordJSON)
}

// CancelTask 取消导入任务
func (h *MaterialHandler) CancelTask(c *gin.Context) {
    taskID := c.Param("taskId")
    if taskID == "" {
        h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
        return
    }

    if err := h.importer.CancelTask(c.Request.Context(), taskID); err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to cancel task", err)
        return
    }

    c.JSON(http.StatusOK, gin.H{
        "message": "Task cancelled successfully",
        "taskId":  taskID,
    })
}

// statusFor 校验类错误归为 400，其余 500
func statusFor(err error) int {
    var exErr *extract.Error
    if errors.As(err, &exErr) {
        switch exErr.Code {
        case extract.CodeNoFile, extract.CodeUnsupported, extract.CodeGeneric:
            return http.StatusBadRequest
        }
    }
    return http.StatusInternalServerError
}

// handleError 统一错误处理
func (h *MaterialHandler) handleError(c *gin.Context, status int, message string, err error) {
    h.logger.Error(message,
        logger.String("path", c.Request.URL.Path),
        logger.Error(err),
    )

    response := ErrorResponse{
        Message: message,
    }
    if err != nil {
        response.Error = err.Error()
        var exErr *extract.Error
        if errors.As(err, &exErr) {
            response.Code = string(exErr.Code)
        }
    }

    c.JSON(status, response)
}
