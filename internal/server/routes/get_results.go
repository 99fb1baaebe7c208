package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"planvision/internal/db"
	"planvision/internal/server/middleware"
	"planvision/internal/storage"
	"planvision/pkg/logger"
	"planvision/pkg/plan"

	"github.com/labstack/echo/v4"
)

// GetStructureHandler returns the analyzed project structure.
func GetStructureHandler(c echo.Context) error {
	type structureResponse struct {
		Message   string                 `json:"message"`
		Structure *plan.ProjectStructure `json:"structure,omitempty"`
	}

	cc := c.(*middleware.AppContext)
	q := db.New(cc.App.DBConn)

	var structure plan.ProjectStructure
	err := q.GetLatestIntermediate(c.Request().Context(), c.Param("id"), db.DataTypeStructure, &structure)
	if err != nil {
		if errors.Is(err, db.ErrNoIntermediate) {
			return c.JSON(http.StatusNotFound, structureResponse{Message: "No structure for task"})
		}
		logger.Error("Failed to get structure", "err", err)
		return c.JSON(http.StatusInternalServerError, structureResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, structureResponse{Message: "OK", Structure: &structure})
}

// GetRoomsHandler returns every extracted room profile of the task.
func GetRoomsHandler(c echo.Context) error {
	type roomsResponse struct {
		Message string                   `json:"message"`
		Rooms   []plan.ExtractedRoomData `json:"rooms"`
	}

	cc := c.(*middleware.AppContext)
	q := db.New(cc.App.DBConn)

	rows, err := q.GetRoomData(c.Request().Context(), c.Param("id"))
	if err != nil {
		logger.Error("Failed to get room data", "err", err)
		return c.JSON(http.StatusInternalServerError, roomsResponse{Message: "Internal server error"})
	}

	rooms := make([]plan.ExtractedRoomData, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.Data)
	}
	return c.JSON(http.StatusOK, roomsResponse{Message: "OK", Rooms: rooms})
}

// GetBillsHandler returns the material bills collected across all rooms.
func GetBillsHandler(c echo.Context) error {
	type billsResponse struct {
		Message string         `json:"message"`
		Bills   []db.RoomBills `json:"bills"`
	}

	cc := c.(*middleware.AppContext)
	q := db.New(cc.App.DBConn)

	payloads, err := q.GetAllIntermediate(c.Request().Context(), c.Param("id"), db.DataTypeMaterialBills)
	if err != nil {
		logger.Error("Failed to get material bills", "err", err)
		return c.JSON(http.StatusInternalServerError, billsResponse{Message: "Internal server error"})
	}

	bills := make([]db.RoomBills, 0, len(payloads))
	for _, payload := range payloads {
		var rb db.RoomBills
		if err := json.Unmarshal(payload, &rb); err != nil {
			logger.Warn("Skipping malformed bill payload", "task_id", c.Param("id"), "err", err)
			continue
		}
		bills = append(bills, rb)
	}
	return c.JSON(http.StatusOK, billsResponse{Message: "OK", Bills: bills})
}

// GetClassificationsHandler returns per-page classifications with presigned
// links to the rendered page images.
func GetClassificationsHandler(c echo.Context) error {
	type classificationEntry struct {
		PageNumber int     `json:"page_number"`
		PageType   string  `json:"page_type"`
		RoomName   *string `json:"room_name"`
		ImageURL   string  `json:"image_url,omitempty"`
	}
	type classificationsResponse struct {
		Message         string                `json:"message"`
		Classifications []classificationEntry `json:"classifications"`
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()
	q := db.New(cc.App.DBConn)

	rows, err := q.GetClassifications(ctx, c.Param("id"))
	if err != nil {
		logger.Error("Failed to get classifications", "err", err)
		return c.JSON(http.StatusInternalServerError, classificationsResponse{Message: "Internal server error"})
	}

	entries := make([]classificationEntry, 0, len(rows))
	for _, row := range rows {
		entry := classificationEntry{
			PageNumber: row.PageNumber,
			PageType:   row.PageType,
			RoomName:   row.RoomName,
		}
		if row.ImageKey != "" {
			link, linkErr := storage.GenerateDownloadLink(ctx, cc.App.S3, row.ImageKey)
			if linkErr != nil {
				logger.Warn("Failed to presign page image", "key", row.ImageKey, "err", linkErr)
			} else {
				entry.ImageURL = link
			}
		}
		entries = append(entries, entry)
	}
	return c.JSON(http.StatusOK, classificationsResponse{Message: "OK", Classifications: entries})
}

// GetPagesHandler lists the rendered page images of a task as presigned
// links.
func GetPagesHandler(c echo.Context) error {
	type pagesResponse struct {
		Message string   `json:"message"`
		Pages   []string `json:"pages"`
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	prefix := "tasks/" + c.Param("id") + "/pages/"
	keys, err := storage.ListFilesWithPrefix(ctx, cc.App.S3, prefix)
	if err != nil {
		logger.Error("Failed to list page images", "err", err)
		return c.JSON(http.StatusInternalServerError, pagesResponse{Message: "Internal server error"})
	}

	pages := make([]string, 0, len(keys))
	for _, key := range keys {
		link, linkErr := storage.GenerateDownloadLink(ctx, cc.App.S3, key)
		if linkErr != nil {
			logger.Warn("Failed to presign page image", "key", key, "err", linkErr)
			continue
		}
		pages = append(pages, link)
	}
	return c.JSON(http.StatusOK, pagesResponse{Message: "OK", Pages: pages})
}
