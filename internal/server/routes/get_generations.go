package routes

import (
	"errors"
	"net/http"
	"strconv"

	"planvision/internal/db"
	"planvision/internal/server/middleware"
	"planvision/pkg/logger"

	"github.com/labstack/echo/v4"
)

type taskResponse struct {
	Message string             `json:"message"`
	Task    *db.GenerationTask `json:"task,omitempty"`
}

// GetGenerationHandler returns the task's status, stage and progress,
// which clients poll during processing.
func GetGenerationHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	q := db.New(cc.App.DBConn)

	task, err := q.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, taskResponse{Message: "Task not found"})
		}
		logger.Error("Failed to get task", "err", err)
		return c.JSON(http.StatusInternalServerError, taskResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, taskResponse{Message: "OK", Task: task})
}

// ListGenerationsHandler lists the calling user's tasks, newest first.
func ListGenerationsHandler(c echo.Context) error {
	type listResponse struct {
		Message string              `json:"message"`
		Tasks   []db.GenerationTask `json:"tasks"`
	}

	cc := c.(*middleware.AppContext)
	q := db.New(cc.App.DBConn)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	tasks, err := q.ListTasks(c.Request().Context(), cc.User.UserID, limit)
	if err != nil {
		logger.Error("Failed to list tasks", "err", err)
		return c.JSON(http.StatusInternalServerError, listResponse{Message: "Internal server error"})
	}

	if tasks == nil {
		tasks = []db.GenerationTask{}
	}
	return c.JSON(http.StatusOK, listResponse{Message: "OK", Tasks: tasks})
}
