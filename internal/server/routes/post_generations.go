package routes

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"planvision/internal/db"
	"planvision/internal/queue"
	"planvision/internal/server/middleware"
	"planvision/internal/storage"
	"planvision/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type createTaskBody struct {
	Title       string `form:"title" validate:"required"`
	PricelistID string `form:"pricelist_id"`
	Comment     string `form:"comment"`
}

type createTaskResponse struct {
	Message string             `json:"message"`
	Task    *db.GenerationTask `json:"task,omitempty"`
}

func takeUpload(c echo.Context) (*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	uploads := form.File["file"]
	if len(uploads) != 1 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "exactly one file expected")
	}
	if !strings.EqualFold(filepath.Ext(uploads[0].Filename), ".pdf") {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "only PDF documents are accepted")
	}
	return uploads[0], nil
}

// createTask uploads the document, creates the task row and publishes it to
// the given queue.
func createTask(c echo.Context, kind string, queueName string) error {
	data := new(createTaskBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createTaskResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createTaskResponse{Message: "Invalid request body"})
	}

	upload, err := takeUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, createTaskResponse{Message: "Invalid request body"})
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	src, err := upload.Open()
	if err != nil {
		logger.Error("Failed to open upload", "err", err)
		return c.JSON(http.StatusInternalServerError, createTaskResponse{Message: "Internal server error"})
	}
	defer src.Close()

	fileID, err := gonanoid.New()
	if err != nil {
		logger.Error("Failed to generate file id", "err", err)
		return c.JSON(http.StatusInternalServerError, createTaskResponse{Message: "Internal server error"})
	}

	pdfKey, err := storage.PutFile(ctx, cc.App.S3, "uploads", upload.Filename, fileID, src)
	if err != nil {
		logger.Error("Failed to upload document", "err", err)
		return c.JSON(http.StatusInternalServerError, createTaskResponse{Message: "Failed to store document"})
	}

	var pricelistID *string
	if data.PricelistID != "" {
		pricelistID = &data.PricelistID
	}

	q := db.New(cc.App.DBConn)
	task, err := q.CreateTask(ctx, db.CreateTaskParams{
		Owner:       cc.User.UserID,
		Title:       data.Title,
		Kind:        kind,
		PricelistID: pricelistID,
		Comment:     data.Comment,
		PdfKey:      pdfKey,
	})
	if err != nil {
		logger.Error("Failed to create task", "err", err)
		return c.JSON(http.StatusInternalServerError, createTaskResponse{Message: "Internal server error"})
	}

	msg, err := json.Marshal(queue.TaskMsg{Message: "New task", TaskID: task.ID})
	if err != nil {
		logger.Error("Failed to marshal task message", "err", err)
		return c.JSON(http.StatusInternalServerError, createTaskResponse{Message: "Internal server error"})
	}
	if err := queue.PublishFIFO(cc.App.Queue, queueName, msg); err != nil {
		logger.Error("Failed to publish task", "task_id", task.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, createTaskResponse{Message: "Failed to enqueue task"})
	}

	return c.JSON(http.StatusAccepted, createTaskResponse{
		Message: "Task accepted",
		Task:    task,
	})
}

// CreateGenerationHandler accepts a design PDF and queues the full
// analysis pipeline.
func CreateGenerationHandler(c echo.Context) error {
	return createTask(c, db.TaskKindGenerate, queue.GenerateQueue)
}

// CreateClassificationHandler accepts a design PDF and queues the
// classification-only flow.
func CreateClassificationHandler(c echo.Context) error {
	return createTask(c, db.TaskKindClassify, queue.ClassifyQueue)
}
