package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/repository"
	apperrors "github.com/ThemOfWind/CTUDY-SERVER/pkg/errors"
)

var (
	ErrWrongPassword      = apperrors.New(apperrors.KindUnauthenticated, "原密码错误")
	ErrMasterOfActiveRoom = apperrors.New(apperrors.KindValidation, "仍是房间的房主，请先转让或删除房间")
	ErrNameRequired       = apperrors.New(apperrors.KindValidation, "姓名不能为空")
)

// searchLimit 成员搜索返回的最大条数
const searchLimit = 20

// MemberService 成员业务接口
type MemberService interface {
	GetProfile(ctx context.Context, memberID string) (*dto.MemberResponse, error)
	UpdateProfile(ctx context.Context, memberID string, req *dto.UpdateProfileRequest) (*dto.MemberResponse, error)
	ChangePassword(ctx context.Context, memberID string, req *dto.ChangePasswordRequest) error
	// Search 按用户名模糊搜索可邀请的成员（不含自己）
	Search(ctx context.Context, viewerID, username string) ([]dto.MemberBrief, error)
	// Withdraw 注销账号：退出所有房间（含券级联）并软删除成员
	Withdraw(ctx context.Context, memberID string) error
}

type memberService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewMemberService 创建 MemberService 实例
func NewMemberService(repo *repository.Repository, logger *zap.Logger) MemberService {
	return &memberService{repo: repo, logger: logger}
}

func (s *memberService) GetProfile(ctx context.Context, memberID string) (*dto.MemberResponse, error) {
	member, err := s.repo.Member.GetByID(ctx, memberID)
	if err != nil {
		return nil, notFoundOr(s.logger, "查询成员失败", err, ErrMemberNotFound)
	}
	return toMemberResponse(member), nil
}

func (s *memberService) UpdateProfile(ctx context.Context, memberID string, req *dto.UpdateProfileRequest) (*dto.MemberResponse, error) {
	member, err := s.repo.Member.GetByID(ctx, memberID)
	if err != nil {
		return nil, notFoundOr(s.logger, "查询成员失败", err, ErrMemberNotFound)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		member.Name = name
	}
	if req.Image != nil {
		if *req.Image == "" {
			member.Image = nil
		} else {
			member.Image = req.Image
		}
	}

	if err := s.repo.Member.Update(ctx, member); err != nil {
		return nil, storeError(s.logger, "更新成员失败", err)
	}
	return toMemberResponse(member), nil
}

func (s *memberService) ChangePassword(ctx context.Context, memberID string, req *dto.ChangePasswordRequest) error {
	member, err := s.repo.Member.GetByID(ctx, memberID)
	if err != nil {
		return notFoundOr(s.logger, "查询成员失败", err, ErrMemberNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return apperrors.Internal(err)
	}
	member.PasswordHash = string(hash)

	if err := s.repo.Member.Update(ctx, member); err != nil {
		return storeError(s.logger, "更新密码失败", err)
	}
	return nil
}

func (s *memberService) Search(ctx context.Context, viewerID, username string) ([]dto.MemberBrief, error) {
	keyword := strings.TrimSpace(username)
	result := []dto.MemberBrief{}
	if keyword == "" {
		return result, nil
	}

	members, err := s.repo.Member.SearchByUsername(ctx, keyword, searchLimit+1)
	if err != nil {
		return nil, storeError(s.logger, "搜索成员失败", err)
	}
	for i := range members {
		if members[i].MemberID == viewerID {
			continue
		}
		if len(result) == searchLimit {
			break
		}
		result = append(result, toMemberBrief(&members[i]))
	}
	return result, nil
}

// ────────────────────── Withdraw ──────────────────────

func (s *memberService) Withdraw(ctx context.Context, memberID string) error {
	var rooms int
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if _, err := txRepo.Member.GetByID(ctx, memberID); err != nil {
			return notFoundOr(s.logger, "查询成员失败", err, ErrMemberNotFound)
		}

		mastered, err := txRepo.Room.CountMasteredActive(ctx, memberID)
		if err != nil {
			return storeError(s.logger, "统计房主房间失败", err)
		}
		if mastered > 0 {
			return ErrMasterOfActiveRoom
		}

		roomIDs, err := txRepo.RoomMember.ListRoomIDsByMember(ctx, memberID)
		if err != nil {
			return storeError(s.logger, "查询成员房间失败", err)
		}
		for _, roomID := range roomIDs {
			if _, err := detachMembers(ctx, txRepo, s.logger, roomID, []string{memberID}); err != nil {
				return err
			}
		}
		rooms = len(roomIDs)

		if err := txRepo.Member.Delete(ctx, memberID); err != nil {
			return storeError(s.logger, "删除成员失败", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("成员已注销", zap.String("member_id", memberID), zap.Int("left_rooms", rooms))
	return nil
}
