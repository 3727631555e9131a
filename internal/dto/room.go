package dto

// ── 房间模块 DTO ──

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	Name       string   `json:"name"        binding:"required,max=50"`
	Banner     *string  `json:"banner"      binding:"omitempty,max=255"`
	MemberList []string `json:"member_list" binding:"omitempty,dive,uuid"`
}

// UpdateRoomRequest 更新房间信息请求
type UpdateRoomRequest struct {
	Name   *string `json:"name"   binding:"omitempty,max=50"`
	Banner *string `json:"banner" binding:"omitempty,max=255"`
}

// RoomMembersRequest 批量加入 / 移除成员请求
type RoomMembersRequest struct {
	MemberList []string `json:"member_list" binding:"required,min=1,dive,uuid"`
}

// TransferMasterRequest 转让房主请求
type TransferMasterRequest struct {
	MemberID string `json:"member_id" binding:"required,uuid"`
}

// RoomListRequest 房间列表查询参数
type RoomListRequest struct {
	PaginationRequest
}
