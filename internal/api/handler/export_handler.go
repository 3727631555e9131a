package handler

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/service"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
	logger    *zap.Logger
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, logger: logger}
}

// ExportCoupons 导出房间券台账（仅房主）
// GET /api/v2/room/:id/export
func (h *ExportHandler) ExportCoupons(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportRoomCoupons(c.Request.Context(), memberID, roomID)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	attachment(c, buf, filename, contentTypeXLSX)
}

// CouponCalendar 导出收到的券为 iCalendar
// GET /api/v2/room/:id/calendar
func (h *ExportHandler) CouponCalendar(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.CouponCalendar(c.Request.Context(), memberID, roomID)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	attachment(c, buf, filename, contentTypeICS)
}

// attachment 设置下载响应头并写入文件内容
func attachment(c *gin.Context, buf *bytes.Buffer, filename, contentType string) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
