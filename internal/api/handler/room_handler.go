package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/service"
	"github.com/ThemOfWind/CTUDY-SERVER/pkg/response"
)

const roomNotFound = "房间不存在"

// RoomHandler 房间模块 HTTP 处理器
type RoomHandler struct {
	roomSvc service.RoomService
	logger  *zap.Logger
}

// NewRoomHandler 创建 RoomHandler
func NewRoomHandler(roomSvc service.RoomService, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc, logger: logger}
}

// ListRooms 我参与的房间（分页）
// GET /api/v2/room?page=&page_size=
func (h *RoomHandler) ListRooms(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	var req dto.RoomListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "参数校验失败")
		return
	}

	list, total, err := h.roomSvc.ListRooms(c.Request.Context(), memberID, &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// CreateRoom 创建房间，创建者成为房主
// POST /api/v2/room
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	var req dto.CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.roomSvc.CreateRoom(c.Request.Context(), memberID, &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Created(c, result)
}

// GetRoom 房间详情
// GET /api/v2/room/:id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	result, err := h.roomSvc.GetRoom(c.Request.Context(), memberID, roomID)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// UpdateRoom 修改房间名称 / 横幅（仅房主）
// PUT /api/v2/room/:id
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	var req dto.UpdateRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.roomSvc.UpdateRoom(c.Request.Context(), memberID, roomID, &req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// DeleteRoom 软删除房间（仅房主）
// DELETE /api/v2/room/:id
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	if err := h.roomSvc.SoftDeleteRoom(c.Request.Context(), memberID, roomID); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}

// TransferMaster 转让房主
// PUT /api/v2/room/:id/master
func (h *RoomHandler) TransferMaster(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	var req dto.TransferMasterRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.roomSvc.TransferMastership(c.Request.Context(), memberID, roomID, req.MemberID); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}

// LeaveRoom 退出房间
// DELETE /api/v2/room/:id/leave
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	if err := h.roomSvc.LeaveRoom(c.Request.Context(), memberID, roomID); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}

// ListMembers 房间参与者，房主在前
// GET /api/v2/room/:id/members
func (h *RoomHandler) ListMembers(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	result, err := h.roomSvc.ListMembers(c.Request.Context(), memberID, roomID)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.OK(c, result)
}

// AddMembers 批量加入成员（仅房主）
// POST /api/v2/room/:id/members
func (h *RoomHandler) AddMembers(c *gin.Context) {
	h.changeMembers(c, h.roomSvc.AddMembers)
}

// RemoveMembers 批量移除成员（仅房主），同时撤销其未使用的收券
// DELETE /api/v2/room/:id/members
func (h *RoomHandler) RemoveMembers(c *gin.Context) {
	h.changeMembers(c, h.roomSvc.RemoveMembers)
}

type memberChangeFunc func(ctx context.Context, actorID, roomID string, memberIDs []string) error

func (h *RoomHandler) changeMembers(c *gin.Context, fn memberChangeFunc) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, roomNotFound)
	if !ok {
		return
	}

	var req dto.RoomMembersRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := fn(c.Request.Context(), memberID, roomID, req.MemberList); err != nil {
		response.FromError(c, h.logger, err)
		return
	}
	response.Success(c)
}
