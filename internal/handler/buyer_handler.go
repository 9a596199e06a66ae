package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"buyer-lead-service/internal/lead"
	"buyer-lead-service/pkg/apperror"
	"buyer-lead-service/pkg/database"
	"buyer-lead-service/pkg/jwtutil"
	"buyer-lead-service/pkg/logger"
	"buyer-lead-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Import limits, set from configuration at startup
var (
	importMaxRows        = lead.DefaultMaxImportRows
	importMaxUploadBytes = int64(5 * 1024 * 1024)
)

// SetImportLimits overrides the CSV import limits
func SetImportLimits(maxRows int, maxUploadBytes int64) {
	if maxRows > 0 {
		importMaxRows = maxRows
	}
	if maxUploadBytes > 0 {
		importMaxUploadBytes = maxUploadBytes
	}
}

// actorFromContext extracts the acting user set by the auth middleware
func actorFromContext(c echo.Context) (lead.Actor, bool) {
	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	if !ok {
		return lead.Actor{}, false
	}
	return lead.Actor{ID: claims.UserID, Role: claims.Role}, true
}

// respondError translates an application error into the HTTP response shape
func respondError(c echo.Context, log *zap.Logger, err error) error {
	switch apperror.CodeOf(err) {
	case apperror.ErrCodeValidation:
		prometheus.RecordBuyerError("validation")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Validation failed",
			"errors":  apperror.FieldsOf(err),
		})
	case apperror.ErrCodeNotFound:
		prometheus.RecordBuyerError("not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "Buyer not found"})
	case apperror.ErrCodeForbidden:
		prometheus.RecordBuyerError("forbidden")
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "Permission denied"})
	case apperror.ErrCodeConflict:
		prometheus.RecordBuyerError("conflict")
		return c.JSON(http.StatusConflict, echo.Map{
			"success": false,
			"error":   "Record has been modified by another user. Please refresh and try again.",
		})
	case apperror.ErrCodeBadCSV:
		prometheus.RecordBuyerError("bad_csv")
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "Failed to parse CSV file"})
	case apperror.ErrCodeRowLimit:
		prometheus.RecordBuyerError("row_limit")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   fmt.Sprintf("CSV file cannot contain more than %d rows", importMaxRows),
		})
	}

	prometheus.RecordBuyerError("db_error")
	log.Error("Unhandled buyer operation error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "Internal server error"})
}

// filtersFromQuery parses list/export query parameters
func filtersFromQuery(c echo.Context) lead.ListFilters {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("limit"))

	return lead.ListFilters{
		City:         c.QueryParam("city"),
		PropertyType: c.QueryParam("propertyType"),
		Status:       c.QueryParam("status"),
		Timeline:     c.QueryParam("timeline"),
		Search:       c.QueryParam("search"),
		Page:         page,
		PageSize:     pageSize,
		SortBy:       c.QueryParam("sortBy"),
		SortOrder:    c.QueryParam("sortOrder"),
	}
}

// ListBuyers handles GET /api/buyers
func ListBuyers(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBuyerOperation("list")

	filters := filtersFromQuery(c)
	log.Info("Listing buyers",
		zap.String("city", filters.City),
		zap.String("status", filters.Status),
		zap.String("search", filters.Search),
		zap.Int("page", filters.Page))

	defer prometheus.TrackDBOperation("query")(time.Now())
	svc := lead.NewService(database.GetDB())
	page, err := svc.List(c.Request().Context(), filters)
	if err != nil {
		return respondError(c, log, err)
	}

	log.Info("Buyers listed", zap.Int("count", len(page.Buyers)), zap.Int64("total", page.Total))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"data": page.Buyers,
			"pagination": echo.Map{
				"page":       page.PageNum,
				"limit":      page.PageSize,
				"total":      page.Total,
				"totalPages": page.TotalPages,
			},
		},
	})
}

// GetBuyer handles GET /api/buyers/:id
func GetBuyer(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBuyerOperation("get")
	id := c.Param("id")

	defer prometheus.TrackDBOperation("query")(time.Now())
	svc := lead.NewService(database.GetDB())
	buyer, history, err := svc.Get(c.Request().Context(), id)
	if err != nil {
		log.Warn("Buyer lookup failed", zap.String("buyer_id", id), zap.Error(err))
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"buyer":   buyer,
			"history": history,
		},
	})
}

// CreateBuyer handles POST /api/buyers
func CreateBuyer(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBuyerOperation("create")

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "authentication required"})
	}

	var input lead.CreateBuyerInput
	if err := c.Bind(&input); err != nil {
		log.Error("Invalid create request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "Invalid request data"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	svc := lead.NewService(database.GetDB())
	buyer, err := svc.Create(c.Request().Context(), &input, actor)
	if err != nil {
		log.Warn("Buyer creation rejected", zap.Error(err))
		return respondError(c, log, err)
	}

	log.Info("Buyer created",
		zap.String("buyer_id", buyer.ID),
		zap.String("city", buyer.City),
		zap.String("property_type", buyer.PropertyType),
		zap.String("owner_id", buyer.OwnerID))

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    buyer,
		"message": "Buyer created successfully",
	})
}

// UpdateBuyer handles PUT /api/buyers/:id
func UpdateBuyer(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBuyerOperation("update")
	id := c.Param("id")

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "authentication required"})
	}

	var input lead.UpdateBuyerInput
	if err := c.Bind(&input); err != nil {
		log.Error("Invalid update request body", zap.String("buyer_id", id), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "Invalid request data"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	svc := lead.NewService(database.GetDB())
	buyer, err := svc.Update(c.Request().Context(), id, &input, actor)
	if err != nil {
		log.Warn("Buyer update rejected", zap.String("buyer_id", id), zap.Error(err))
		return respondError(c, log, err)
	}

	log.Info("Buyer updated", zap.String("buyer_id", buyer.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    buyer,
		"message": "Buyer updated successfully",
	})
}

// DeleteBuyer handles DELETE /api/buyers/:id
func DeleteBuyer(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBuyerOperation("delete")
	id := c.Param("id")

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	svc := lead.NewService(database.GetDB())
	if err := svc.Delete(c.Request().Context(), id, actor); err != nil {
		log.Warn("Buyer delete rejected", zap.String("buyer_id", id), zap.Error(err))
		return respondError(c, log, err)
	}

	log.Info("Buyer deleted", zap.String("buyer_id", id))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Buyer deleted successfully",
	})
}

// ImportBuyers handles POST /api/buyers/import (multipart CSV upload)
func ImportBuyers(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBuyerOperation("import")
	prometheus.ImportBatchCounter.Inc()

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "authentication required"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warn("Import request without file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "CSV file is required"})
	}

	if fileHeader.Size > importMaxUploadBytes {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "File too large"})
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "Only CSV files are allowed"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "CSV file is required"})
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, importMaxUploadBytes+1))
	if err != nil {
		log.Error("Failed to read uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "Failed to read CSV file"})
	}
	if int64(len(data)) > importMaxUploadBytes {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "File too large"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	importer := lead.NewImporter(database.GetDB(), importMaxRows)
	result, err := importer.Import(c.Request().Context(), data, actor.ID)
	if err != nil {
		log.Warn("Import aborted", zap.Error(err))
		return respondError(c, log, err)
	}

	prometheus.RecordImportRows(result.SuccessCount, result.ErrorCount)
	log.Info("Import completed",
		zap.Int("imported", result.SuccessCount),
		zap.Int("rejected", result.ErrorCount))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    result,
		"message": fmt.Sprintf("Import completed. %d buyers imported, %d errors.", result.SuccessCount, result.ErrorCount),
	})
}

// ExportBuyers handles GET /api/buyers/export
func ExportBuyers(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBuyerOperation("export")

	filters := filtersFromQuery(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	svc := lead.NewService(database.GetDB())
	data, err := svc.Export(c.Request().Context(), filters)
	if err != nil {
		return respondError(c, log, err)
	}

	filename := fmt.Sprintf("buyers-export-%s.csv", time.Now().UTC().Format("2006-01-02T15-04-05"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))

	log.Info("Buyers exported", zap.String("filename", filename), zap.Int("bytes", len(data)))
	return c.Blob(http.StatusOK, "text/csv", data)
}
