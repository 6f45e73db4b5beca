package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"basegate/domain"
	"basegate/objects"
	"basegate/storage"
)

// maxUploadSize bounds a single multipart file upload.
const maxUploadSize = 16 << 20

var tracer = otel.Tracer("basegate/api")

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store RecordStore, attachments Attachments, hub *RoomHub, verifier Verifier, logger *log.Logger) {
	e.GET("/api/tables/:table/records", getRecords(store))
	e.POST("/api/tables/:table/records", createRecords(store))
	e.PATCH("/api/tables/:table/records", updateRecords(store))
	e.DELETE("/api/tables/:table/records", deleteRecords(store))
	e.GET("/api/tables/:table/records/:id", getRecord(store))
	e.PATCH("/api/tables/:table/records/:id", updateRecord(store))

	e.GET("/api/board", getBoard(store, logger))
	e.GET("/api/tasks/display/:displayId", getTaskByDisplayID(store))
	e.POST("/api/counter/increment", incrementCounter(store))

	e.POST("/api/uploads", postUpload(attachments, verifier))
	e.PUT("/api/tables/:table/records/:id/content/:field", putNamedContent(attachments))
	e.GET("/api/tables/:table/records/:id/content/:field", getNamedContent(attachments))

	e.POST("/api/rooms/:room/messages", postMessage(hub, verifier))
	e.GET("/api/rooms/:room/stream", streamRoom(hub))

	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getRecords(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		table := c.Param("table")
		var (
			records []domain.Record
			err     error
		)
		if anchor := c.QueryParam("anchor"); anchor != "" {
			records, err = store.GetFiltered(ctx, anchor, table)
		} else {
			records, err = store.GetAll(ctx, table)
		}
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "record store unavailable")
		}
		return c.JSON(http.StatusOK, map[string]any{"records": records})
	}
}

func getRecord(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, err := store.GetOne(c.Request().Context(), c.Param("table"), c.Param("id"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return jsonError(c, http.StatusNotFound, "record not found")
			}
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "record store unavailable")
		}
		return c.JSON(http.StatusOK, rec)
	}
}

func createRecords(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			Records []domain.Record `json:"records"`
		}
		if err := decodeBody(c, &body); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid body")
		}
		if len(body.Records) == 0 {
			return jsonError(c, http.StatusBadRequest, "records are required")
		}
		created, err := store.CreateMany(c.Request().Context(), body.Records, c.Param("table"))
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "create failed")
		}
		return c.JSON(http.StatusCreated, map[string]any{"records": created})
	}
}

func updateRecords(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			Records []domain.Record `json:"records"`
		}
		if err := decodeBody(c, &body); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid body")
		}
		if len(body.Records) == 0 {
			return jsonError(c, http.StatusBadRequest, "records are required")
		}
		for _, rec := range body.Records {
			if rec.ID == "" {
				return jsonError(c, http.StatusBadRequest, "every record needs an id")
			}
		}
		updated, err := store.UpdateMany(c.Request().Context(), body.Records, c.Param("table"))
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "update failed")
		}
		return c.JSON(http.StatusOK, map[string]any{"records": updated})
	}
}

func deleteRecords(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := decodeBody(c, &body); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid body")
		}
		if len(body.IDs) == 0 {
			return jsonError(c, http.StatusBadRequest, "ids are required")
		}
		deleted, err := store.DeleteMany(c.Request().Context(), body.IDs, c.Param("table"))
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "delete failed")
		}
		return c.JSON(http.StatusOK, map[string]any{"deleted": deleted})
	}
}

func updateRecord(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		if err := decodeBody(c, &body); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid body")
		}
		if len(body.Fields) == 0 {
			return jsonError(c, http.StatusBadRequest, "fields are required")
		}
		rec, err := store.UpdateOne(c.Request().Context(), c.Param("id"), body.Fields, c.Param("table"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return jsonError(c, http.StatusNotFound, "record not found")
			}
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "update failed")
		}
		return c.JSON(http.StatusOK, rec)
	}
}

func getBoard(store RecordStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newBoardRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		anchor := c.QueryParam("anchor")
		if anchor == "" {
			metrics.SetErrorStage("missing_anchor")
			err = jsonError(c, http.StatusBadRequest, "anchor is required")
			return err
		}

		ctx, span := tracer.Start(c.Request().Context(), "board.build",
			trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()

		fetchStart := time.Now()
		records, fetchErr := store.GetFiltered(ctx, anchor, storage.TableTasks)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = jsonError(c, http.StatusInternalServerError, "record store unavailable")
			return err
		}

		transformStart := time.Now()
		board := domain.BuildBoard(records)
		metrics.ObserveTransform(time.Since(transformStart))
		metrics.SetCounts(len(records), len(board.Groups), len(board.Ungrouped))
		span.AddEvent("board built")

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, board)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTaskByDisplayID(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, err := store.FindTaskByDisplayID(c.Request().Context(), c.Param("displayId"))
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "record store unavailable")
		}
		if rec == nil {
			return jsonError(c, http.StatusNotFound, "task not found")
		}
		return c.JSON(http.StatusOK, rec)
	}
}

func incrementCounter(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		value, err := store.IncrementCounter(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "counter unavailable")
		}
		return c.JSON(http.StatusOK, map[string]any{"value": value})
	}
}

func postUpload(attachments Attachments, verifier Verifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		table := c.FormValue("table")
		recordID := c.FormValue("recordId")
		fieldName := c.FormValue("field")
		if table == "" || recordID == "" || fieldName == "" {
			return jsonError(c, http.StatusBadRequest, "table, recordId and field are required")
		}
		mode := objects.AttachMode(c.FormValue("mode"))
		if mode == "" {
			mode = objects.ModeAppend
		}

		ctx := c.Request().Context()
		if verifier != nil {
			if err := verifier.Verify(ctx, c.FormValue("captchaToken"), "upload"); err != nil {
				if errors.Is(err, ErrVerificationRejected) {
					return jsonError(c, http.StatusForbidden, "verification failed")
				}
				c.Logger().Error(err)
				return jsonError(c, http.StatusInternalServerError, "verification unavailable")
			}
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return jsonError(c, http.StatusBadRequest, "file is required")
		}
		if fileHeader.Size > maxUploadSize {
			return jsonError(c, http.StatusRequestEntityTooLarge, "file too large")
		}
		src, err := fileHeader.Open()
		if err != nil {
			return jsonError(c, http.StatusBadRequest, "unreadable file")
		}
		defer src.Close()
		content, err := io.ReadAll(io.LimitReader(src, maxUploadSize))
		if err != nil {
			return jsonError(c, http.StatusBadRequest, "unreadable file")
		}

		url, err := attachments.StoreUpload(ctx, content, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "upload failed")
		}
		rec, err := attachments.Attach(ctx, recordID, fieldName, table,
			domain.Attachment{URL: url, Filename: fileHeader.Filename}, mode)
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "attach failed")
		}
		return c.JSON(http.StatusCreated, map[string]any{"url": url, "record": rec})
	}
}

func putNamedContent(attachments Attachments) echo.HandlerFunc {
	return func(c echo.Context) error {
		content, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize+1))
		if err != nil || len(content) == 0 {
			return jsonError(c, http.StatusBadRequest, "content is required")
		}
		if len(content) > maxBodySize {
			return jsonError(c, http.StatusRequestEntityTooLarge, "content too large")
		}
		ctx := c.Request().Context()
		if err := attachments.StoreNamedContent(ctx, c.Param("table"), c.Param("id"), c.Param("field"), content); err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "store failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getNamedContent(attachments Attachments) echo.HandlerFunc {
	return func(c echo.Context) error {
		content, err := attachments.FetchNamedContentHybrid(c.Request().Context(), c.Param("table"), c.Param("id"), c.Param("field"))
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "fetch failed")
		}
		if content == nil {
			return jsonError(c, http.StatusNotFound, "no content")
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, content)
	}
}
