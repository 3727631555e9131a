package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/config"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/repository"
	apperrors "github.com/ThemOfWind/CTUDY-SERVER/pkg/errors"
)

// ── 房间模块业务错误 ──

var (
	ErrRoomNotFound       = apperrors.New(apperrors.KindNotFound, "房间不存在")
	ErrRoomNameRequired   = apperrors.New(apperrors.KindValidation, "房间名称不能为空")
	ErrRoomNameExists     = apperrors.New(apperrors.KindValidation, "房间名称已存在")
	ErrNotRoomMaster      = apperrors.New(apperrors.KindAuthorization, "仅房主可执行该操作")
	ErrNotRoomParticipant = apperrors.New(apperrors.KindAuthorization, "不是该房间成员")
	ErrNoMembersToAdd     = apperrors.New(apperrors.KindNotFound, "没有可加入的成员")
	ErrEmptyMemberList    = apperrors.New(apperrors.KindValidation, "成员列表不能为空")
	ErrCannotRemoveMaster = apperrors.New(apperrors.KindValidation, "不能移除房主")
	ErrMemberNotInRoom    = apperrors.New(apperrors.KindNotFound, "该成员不在房间中")
	ErrTransferToSelf     = apperrors.New(apperrors.KindValidation, "不能将房主转让给自己")
	ErrMasterCannotLeave  = apperrors.New(apperrors.KindValidation, "房主不能退出房间，请先转让房主")
)

// RoomService 房间成员与归属管理接口
//
// 参与者 = 房主 ∪ room_members 中的成员，房主不写入 room_members。
// 所有写操作在单个事务内完成，房间归属以 SELECT ... FOR UPDATE 读取。
type RoomService interface {
	CreateRoom(ctx context.Context, creatorID string, req *dto.CreateRoomRequest) (*dto.RoomCreatedResponse, error)
	ListRooms(ctx context.Context, viewerID string, req *dto.RoomListRequest) ([]dto.RoomListItem, int64, error)
	GetRoom(ctx context.Context, viewerID, roomID string) (*dto.RoomDetailResponse, error)
	UpdateRoom(ctx context.Context, actorID, roomID string, req *dto.UpdateRoomRequest) (*dto.RoomDetailResponse, error)
	ListMembers(ctx context.Context, viewerID, roomID string) ([]dto.RoomMemberResponse, error)

	AddMembers(ctx context.Context, actorID, roomID string, memberIDs []string) error
	// RemoveMembers 移除成员，并删除其在该房间收到的未使用券
	RemoveMembers(ctx context.Context, actorID, roomID string, memberIDs []string) error
	TransferMastership(ctx context.Context, actorID, roomID, newMasterID string) error
	LeaveRoom(ctx context.Context, actorID, roomID string) error
	SoftDeleteRoom(ctx context.Context, actorID, roomID string) error
}

type roomService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

// NewRoomService 创建 RoomService 实例
func NewRoomService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) RoomService {
	return &roomService{cfg: cfg, repo: repo, logger: logger}
}

// ────────────────────── CreateRoom ──────────────────────

func (s *roomService) CreateRoom(ctx context.Context, creatorID string, req *dto.CreateRoomRequest) (*dto.RoomCreatedResponse, error) {
	name, err := s.checkName(ctx, s.repo, req.Name, "")
	if err != nil {
		return nil, err
	}

	// 初始成员：去重、剔除创建者，仅保留存在且启用的成员
	candidates := uniqueIDs(req.MemberList, creatorID)
	members, err := s.repo.Member.ListActiveByIDs(ctx, candidates)
	if err != nil {
		return nil, storeError(s.logger, "查询成员失败", err)
	}
	memberIDs := make([]string, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.MemberID)
	}

	room := &model.Room{
		Name:   name,
		Banner: req.Banner,
		AuditModel: model.AuditModel{
			CreatedBy: &creatorID,
			UpdatedBy: &creatorID,
		},
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Room.Create(ctx, room); err != nil {
			return storeError(s.logger, "创建房间失败", err)
		}
		if err := txRepo.Room.CreateConfig(ctx, &model.RoomConfig{RoomID: room.RoomID, MasterID: creatorID}); err != nil {
			return storeError(s.logger, "创建房间归属失败", err)
		}
		if err := txRepo.RoomMember.Add(ctx, room.RoomID, memberIDs); err != nil {
			return storeError(s.logger, "添加房间成员失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("房间已创建",
		zap.String("room_id", room.RoomID),
		zap.String("master_id", creatorID),
		zap.Int("members", len(memberIDs)),
	)
	return &dto.RoomCreatedResponse{ID: room.RoomID}, nil
}

// ────────────────────── ListRooms ──────────────────────

func (s *roomService) ListRooms(ctx context.Context, viewerID string, req *dto.RoomListRequest) ([]dto.RoomListItem, int64, error) {
	rooms, total, err := s.repo.Room.ListByParticipant(ctx, viewerID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		return nil, 0, storeError(s.logger, "查询房间列表失败", err)
	}

	roomIDs := make([]string, 0, len(rooms))
	for _, r := range rooms {
		roomIDs = append(roomIDs, r.RoomID)
	}
	counts, err := s.repo.RoomMember.CountByRooms(ctx, roomIDs)
	if err != nil {
		return nil, 0, storeError(s.logger, "统计房间成员失败", err)
	}

	items := make([]dto.RoomListItem, 0, len(rooms))
	for i := range rooms {
		r := &rooms[i]
		item := dto.RoomListItem{
			ID:          r.RoomID,
			Name:        r.Name,
			Banner:      r.Banner,
			MemberCount: counts[r.RoomID] + 1,
			CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		}
		if r.Config != nil {
			item.IsMaster = r.Config.MasterID == viewerID
			if r.Config.Master != nil {
				item.MasterName = r.Config.Master.Name
				item.MasterUsername = r.Config.Master.Username
			}
		}
		items = append(items, item)
	}
	return items, total, nil
}

// ────────────────────── GetRoom ──────────────────────

func (s *roomService) GetRoom(ctx context.Context, viewerID, roomID string) (*dto.RoomDetailResponse, error) {
	room, cfg, err := s.loadRoom(ctx, s.repo, roomID, false)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, s.repo, cfg, viewerID); err != nil {
		return nil, err
	}

	master, err := s.masterOf(ctx, room, cfg)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.RoomMember.ListMembers(ctx, roomID)
	if err != nil {
		return nil, storeError(s.logger, "查询房间成员失败", err)
	}

	resp := &dto.RoomDetailResponse{
		ID:          room.RoomID,
		Name:        room.Name,
		Banner:      room.Banner,
		Master:      toMemberBrief(master),
		Members:     make([]dto.MemberBrief, 0, len(members)),
		MemberCount: int64(len(members)) + 1,
		IsMaster:    cfg.MasterID == viewerID,
		CreatedAt:   room.CreatedAt.Format(time.RFC3339),
	}
	for i := range members {
		resp.Members = append(resp.Members, toMemberBrief(&members[i]))
	}
	return resp, nil
}

// ────────────────────── UpdateRoom ──────────────────────

func (s *roomService) UpdateRoom(ctx context.Context, actorID, roomID string, req *dto.UpdateRoomRequest) (*dto.RoomDetailResponse, error) {
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		room, _, err := s.loadMasterGated(ctx, txRepo, actorID, roomID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			name, err := s.checkName(ctx, txRepo, *req.Name, roomID)
			if err != nil {
				return err
			}
			room.Name = name
		}
		if req.Banner != nil {
			room.Banner = req.Banner
		}
		room.UpdatedBy = &actorID
		room.Config = nil

		if err := txRepo.Room.Update(ctx, room); err != nil {
			return storeError(s.logger, "更新房间失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, actorID, roomID)
}

// ────────────────────── ListMembers ──────────────────────

func (s *roomService) ListMembers(ctx context.Context, viewerID, roomID string) ([]dto.RoomMemberResponse, error) {
	room, cfg, err := s.loadRoom(ctx, s.repo, roomID, false)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, s.repo, cfg, viewerID); err != nil {
		return nil, err
	}

	master, err := s.masterOf(ctx, room, cfg)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.RoomMember.ListMembers(ctx, roomID)
	if err != nil {
		return nil, storeError(s.logger, "查询房间成员失败", err)
	}

	result := make([]dto.RoomMemberResponse, 0, len(members)+1)
	result = append(result, dto.RoomMemberResponse{MemberBrief: toMemberBrief(master), IsMaster: true})
	for i := range members {
		result = append(result, dto.RoomMemberResponse{MemberBrief: toMemberBrief(&members[i])})
	}
	return result, nil
}

// ────────────────────── AddMembers ──────────────────────

func (s *roomService) AddMembers(ctx context.Context, actorID, roomID string, memberIDs []string) error {
	var added []string
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		_, cfg, err := s.loadMasterGated(ctx, txRepo, actorID, roomID)
		if err != nil {
			return err
		}

		members, err := txRepo.Member.ListActiveByIDs(ctx, uniqueIDs(memberIDs, cfg.MasterID))
		if err != nil {
			return storeError(s.logger, "查询成员失败", err)
		}
		if len(members) == 0 {
			return ErrNoMembersToAdd
		}

		for _, m := range members {
			added = append(added, m.MemberID)
		}
		if err := txRepo.RoomMember.Add(ctx, roomID, added); err != nil {
			return storeError(s.logger, "添加房间成员失败", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("房间成员已添加", zap.String("room_id", roomID), zap.Strings("member_ids", added))
	return nil
}

// ────────────────────── RemoveMembers ──────────────────────

func (s *roomService) RemoveMembers(ctx context.Context, actorID, roomID string, memberIDs []string) error {
	ids := uniqueIDs(memberIDs, "")
	if len(ids) == 0 {
		return ErrEmptyMemberList
	}

	var coupons int64
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		_, cfg, err := s.loadMasterGated(ctx, txRepo, actorID, roomID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == cfg.MasterID {
				return ErrCannotRemoveMaster
			}
		}

		coupons, err = s.detach(ctx, txRepo, roomID, ids)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("房间成员已移除",
		zap.String("room_id", roomID),
		zap.Strings("member_ids", ids),
		zap.Int64("revoked_coupons", coupons),
	)
	return nil
}

// ────────────────────── TransferMastership ──────────────────────

func (s *roomService) TransferMastership(ctx context.Context, actorID, roomID, newMasterID string) error {
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		_, cfg, err := s.loadMasterGated(ctx, txRepo, actorID, roomID)
		if err != nil {
			return err
		}
		if newMasterID == cfg.MasterID {
			return ErrTransferToSelf
		}

		ok, err := txRepo.RoomMember.Exists(ctx, roomID, newMasterID)
		if err != nil {
			return storeError(s.logger, "查询房间成员失败", err)
		}
		if !ok {
			return ErrMemberNotInRoom
		}

		// 新房主移出成员表，原房主转为普通成员
		if _, err := txRepo.RoomMember.Remove(ctx, roomID, []string{newMasterID}); err != nil {
			return storeError(s.logger, "移除新房主成员关系失败", err)
		}
		if err := txRepo.RoomMember.Add(ctx, roomID, []string{cfg.MasterID}); err != nil {
			return storeError(s.logger, "原房主加入成员失败", err)
		}
		if err := txRepo.Room.UpdateMaster(ctx, roomID, newMasterID); err != nil {
			return storeError(s.logger, "更新房主失败", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("房主已转让",
		zap.String("room_id", roomID),
		zap.String("from", actorID),
		zap.String("to", newMasterID),
	)
	return nil
}

// ────────────────────── LeaveRoom ──────────────────────

func (s *roomService) LeaveRoom(ctx context.Context, actorID, roomID string) error {
	return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		_, cfg, err := s.loadRoom(ctx, txRepo, roomID, true)
		if err != nil {
			return err
		}
		if cfg.MasterID == actorID {
			return ErrMasterCannotLeave
		}

		ok, err := txRepo.RoomMember.Exists(ctx, roomID, actorID)
		if err != nil {
			return storeError(s.logger, "查询房间成员失败", err)
		}
		if !ok {
			return ErrMemberNotInRoom
		}

		_, err = s.detach(ctx, txRepo, roomID, []string{actorID})
		return err
	})
}

// ────────────────────── SoftDeleteRoom ──────────────────────

func (s *roomService) SoftDeleteRoom(ctx context.Context, actorID, roomID string) error {
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if _, _, err := s.loadMasterGated(ctx, txRepo, actorID, roomID); err != nil {
			return err
		}
		if err := txRepo.Room.SoftDelete(ctx, roomID, actorID); err != nil {
			return storeError(s.logger, "删除房间失败", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("房间已删除", zap.String("room_id", roomID), zap.String("by", actorID))
	return nil
}

// ── 辅助函数 ──

// checkName 校验房间名称；开启唯一约束时排除 excludeID 后查重
func (s *roomService) checkName(ctx context.Context, repo *repository.Repository, raw, excludeID string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrRoomNameRequired
	}
	if !s.cfg.Feature.UniqueRoomName {
		return name, nil
	}

	exists, err := repo.Room.ExistsActiveName(ctx, name, excludeID)
	if err != nil {
		return "", storeError(s.logger, "查询房间名称失败", err)
	}
	if exists {
		return "", ErrRoomNameExists
	}
	return name, nil
}

// loadRoom 读取未删除的房间及其归属；forUpdate 为 true 时锁定归属记录
func (s *roomService) loadRoom(ctx context.Context, repo *repository.Repository, roomID string, forUpdate bool) (*model.Room, *model.RoomConfig, error) {
	return loadRoom(ctx, repo, s.logger, roomID, forUpdate)
}

// loadMasterGated 在事务内读取房间并校验 actorID 为房主
func (s *roomService) loadMasterGated(ctx context.Context, txRepo *repository.Repository, actorID, roomID string) (*model.Room, *model.RoomConfig, error) {
	room, cfg, err := s.loadRoom(ctx, txRepo, roomID, true)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MasterID != actorID {
		return nil, nil, ErrNotRoomMaster
	}
	return room, cfg, nil
}

func (s *roomService) requireParticipant(ctx context.Context, repo *repository.Repository, cfg *model.RoomConfig, memberID string) error {
	ok, err := isParticipant(ctx, repo, cfg, memberID)
	if err != nil {
		return storeError(s.logger, "查询房间成员失败", err)
	}
	if !ok {
		return ErrNotRoomParticipant
	}
	return nil
}

// masterOf 优先使用预加载的房主信息
func (s *roomService) masterOf(ctx context.Context, room *model.Room, cfg *model.RoomConfig) (*model.Member, error) {
	if room.Config != nil && room.Config.Master != nil {
		return room.Config.Master, nil
	}
	master, err := s.repo.Member.GetByID(ctx, cfg.MasterID)
	if err != nil {
		return nil, notFoundOr(s.logger, "查询房主失败", err, ErrMemberNotFound)
	}
	return master, nil
}

// detach 删除成员在房间内收到的未使用券并解除成员关系，返回删除的券数
func (s *roomService) detach(ctx context.Context, txRepo *repository.Repository, roomID string, memberIDs []string) (int64, error) {
	return detachMembers(ctx, txRepo, s.logger, roomID, memberIDs)
}

// loadRoom 读取未删除的房间及其归属
func loadRoom(ctx context.Context, repo *repository.Repository, logger *zap.Logger, roomID string, forUpdate bool) (*model.Room, *model.RoomConfig, error) {
	room, err := repo.Room.GetByID(ctx, roomID)
	if err != nil {
		return nil, nil, notFoundOr(logger, "查询房间失败", err, ErrRoomNotFound)
	}

	var cfg *model.RoomConfig
	if forUpdate {
		cfg, err = repo.Room.GetConfigForUpdate(ctx, roomID)
	} else if room.Config != nil {
		cfg = room.Config
	} else {
		cfg, err = repo.Room.GetConfig(ctx, roomID)
	}
	if err != nil {
		return nil, nil, notFoundOr(logger, "查询房间归属失败", err, ErrRoomNotFound)
	}
	return room, cfg, nil
}

// isParticipant 判断成员是否为房间参与者（房主或普通成员）
func isParticipant(ctx context.Context, repo *repository.Repository, cfg *model.RoomConfig, memberID string) (bool, error) {
	if cfg.MasterID == memberID {
		return true, nil
	}
	return repo.RoomMember.Exists(ctx, cfg.RoomID, memberID)
}

// detachMembers 成员离开房间时的级联：先删未使用的收券，再解除成员关系
func detachMembers(ctx context.Context, txRepo *repository.Repository, logger *zap.Logger, roomID string, memberIDs []string) (int64, error) {
	n, err := txRepo.Coupon.DeleteUnusedReceived(ctx, roomID, memberIDs)
	if err != nil {
		return 0, storeError(logger, "删除未使用券失败", err)
	}
	if _, err := txRepo.RoomMember.Remove(ctx, roomID, memberIDs); err != nil {
		return 0, storeError(logger, "移除房间成员失败", err)
	}
	return n, nil
}
