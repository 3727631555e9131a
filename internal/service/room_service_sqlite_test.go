package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ThemOfWind/CTUDY-SERVER/config"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/repository"
	apperrors "github.com/ThemOfWind/CTUDY-SERVER/pkg/errors"
)

// 以 SQLite 验证真实事务下的级联与回滚

func setupSQLiteRepo(t *testing.T) (*gorm.DB, *repository.Repository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "打开 SQLite 失败")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Member{},
		&model.Room{},
		&model.RoomConfig{},
		&model.RoomMember{},
		&model.Coupon{},
		&model.CertificateCode{},
	))
	return db, repository.NewRepository(db)
}

func sqliteMember(t *testing.T, repo *repository.Repository, username string) string {
	t.Helper()
	m := &model.Member{
		Username:     username,
		Email:        username + "@ctudy.kr",
		PasswordHash: "$2a$10$placeholder",
		Name:         username,
		IsActive:     true,
	}
	require.NoError(t, repo.Member.Create(context.Background(), m))
	return m.MemberID
}

func TestRoomService_SQLite_RemoveCascadeCommits(t *testing.T) {
	db, repo := setupSQLiteRepo(t)
	svc := NewRoomService(&config.Config{}, repo, zap.NewNop())
	ctx := context.Background()

	alice := sqliteMember(t, repo, "alice")
	bob := sqliteMember(t, repo, "bob")
	created, err := svc.CreateRoom(ctx, alice, &dto.CreateRoomRequest{Name: "算法小组", MemberList: []string{bob}})
	require.NoError(t, err)

	d := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Coupon.Create(ctx, &model.Coupon{
		Name: "咖啡", RoomID: created.ID, SenderID: alice, ReceiverID: bob, StartDate: d, EndDate: d,
	}))

	require.NoError(t, svc.RemoveMembers(ctx, alice, created.ID, []string{bob}))

	var coupons, members int64
	db.Model(&model.Coupon{}).Where("room_id = ?", created.ID).Count(&coupons)
	db.Model(&model.RoomMember{}).Where("room_id = ?", created.ID).Count(&members)
	assert.Zero(t, coupons, "bob 收到的未使用券应被删除")
	assert.Zero(t, members, "bob 应被移出")
}

func TestRoomService_SQLite_RemoveRollsBackOnFailure(t *testing.T) {
	db, repo := setupSQLiteRepo(t)
	svc := NewRoomService(&config.Config{}, repo, zap.NewNop())
	ctx := context.Background()

	alice := sqliteMember(t, repo, "alice")
	bob := sqliteMember(t, repo, "bob")
	created, err := svc.CreateRoom(ctx, alice, &dto.CreateRoomRequest{Name: "算法小组", MemberList: []string{bob}})
	require.NoError(t, err)

	d := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Coupon.Create(ctx, &model.Coupon{
		Name: "咖啡", RoomID: created.ID, SenderID: alice, ReceiverID: bob, StartDate: d, EndDate: d,
	}))

	// 删券成功后解除成员关系失败
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:fail_room_members", func(tx *gorm.DB) {
		if tx.Statement.Table == "room_members" {
			_ = tx.AddError(errors.New("disk I/O error"))
		}
	}))

	err = svc.RemoveMembers(ctx, alice, created.ID, []string{bob})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	var coupons, members int64
	db.Model(&model.Coupon{}).Where("room_id = ?", created.ID).Count(&coupons)
	db.Model(&model.RoomMember{}).Where("room_id = ?", created.ID).Count(&members)
	assert.Equal(t, int64(1), coupons, "事务回滚后券应恢复")
	assert.Equal(t, int64(1), members, "事务回滚后成员关系应保留")
}

func TestRoomService_SQLite_TransferAndList(t *testing.T) {
	_, repo := setupSQLiteRepo(t)
	svc := NewRoomService(&config.Config{}, repo, zap.NewNop())
	ctx := context.Background()

	alice := sqliteMember(t, repo, "alice")
	bob := sqliteMember(t, repo, "bob")
	created, err := svc.CreateRoom(ctx, alice, &dto.CreateRoomRequest{Name: "算法小组", MemberList: []string{bob}})
	require.NoError(t, err)

	require.NoError(t, svc.TransferMastership(ctx, alice, created.ID, bob))

	list, err := svc.ListMembers(ctx, alice, created.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, bob, list[0].ID)
	assert.True(t, list[0].IsMaster)
	assert.Equal(t, alice, list[1].ID)

	items, total, err := svc.ListRooms(ctx, alice, &dto.RoomListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.False(t, items[0].IsMaster)
	assert.Equal(t, "bob", items[0].MasterUsername)
}
