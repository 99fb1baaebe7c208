package routes

import (
	"errors"
	"net/http"

	"planvision/internal/db"
	"planvision/internal/server/middleware"
	"planvision/internal/storage"
	"planvision/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DeleteGenerationHandler removes a task, its rows (cascaded) and its S3
// artifacts.
func DeleteGenerationHandler(c echo.Context) error {
	type deleteResponse struct {
		Message string `json:"message"`
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()
	q := db.New(cc.App.DBConn)
	taskID := c.Param("id")

	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, db.ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, deleteResponse{Message: "Task not found"})
		}
		logger.Error("Failed to get task", "err", err)
		return c.JSON(http.StatusInternalServerError, deleteResponse{Message: "Internal server error"})
	}

	if err := q.DeleteTask(ctx, taskID); err != nil {
		logger.Error("Failed to delete task", "task_id", taskID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteResponse{Message: "Internal server error"})
	}

	// Artifact cleanup is best effort; the rows are already gone.
	if err := storage.DeleteFolder(ctx, cc.App.S3, "tasks/"+taskID+"/"); err != nil {
		logger.Warn("Failed to delete task artifacts", "task_id", taskID, "err", err)
	}
	if task.PdfKey != "" {
		if err := storage.DeleteFile(ctx, cc.App.S3, task.PdfKey); err != nil {
			logger.Warn("Failed to delete source document", "task_id", taskID, "err", err)
		}
	}

	return c.JSON(http.StatusOK, deleteResponse{Message: "Task deleted"})
}
