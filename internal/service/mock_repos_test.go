package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/repository"
)

// ── 共享内存存储 ──
//
// 各 mock 仓储共用同一份数据，保证房间、成员关系与券之间的级联可被观察到。
// 读取方法返回副本，避免 service 修改未提交的数据。

type mockStore struct {
	members     map[string]*model.Member
	rooms       map[string]*model.Room
	configs     map[string]*model.RoomConfig
	roomMembers map[string]map[string]bool
	coupons     map[string]*model.Coupon
	certs       map[string]*model.CertificateCode

	// errs 按方法名注入存储错误，如 "Coupon.DeleteUnusedReceived"
	errs  map[string]error
	// hooks 在对应方法执行前调用，用于模拟并发写入
	hooks map[string]func()
}

func newMockStore() *mockStore {
	return &mockStore{
		members:     make(map[string]*model.Member),
		rooms:       make(map[string]*model.Room),
		configs:     make(map[string]*model.RoomConfig),
		roomMembers: make(map[string]map[string]bool),
		coupons:     make(map[string]*model.Coupon),
		certs:       make(map[string]*model.CertificateCode),
		errs:        make(map[string]error),
		hooks:       make(map[string]func()),
	}
}

func (st *mockStore) fail(method string) error {
	if hook := st.hooks[method]; hook != nil {
		hook()
	}
	return st.errs[method]
}

// newMockRepository 以共享存储构造 Repository 聚合（无 db，事务退化为直接执行）
func newMockRepository() (*repository.Repository, *mockStore) {
	st := newMockStore()
	return &repository.Repository{
		Member:          &mockMemberRepo{st: st},
		Room:            &mockRoomRepo{st: st},
		RoomMember:      &mockRoomMemberRepo{st: st},
		Coupon:          &mockCouponRepo{st: st},
		CertificateCode: &mockCertificateCodeRepo{st: st},
	}, st
}

// ── Mock MemberRepository ──

type mockMemberRepo struct {
	st *mockStore
}

func (m *mockMemberRepo) alive(id string) (*model.Member, bool) {
	mem, ok := m.st.members[id]
	if !ok || mem.DeletedAt.Valid {
		return nil, false
	}
	return mem, true
}

func (m *mockMemberRepo) Create(_ context.Context, member *model.Member) error {
	if err := m.st.fail("Member.Create"); err != nil {
		return err
	}
	_ = member.BeforeCreate(nil)
	cp := *member
	m.st.members[member.MemberID] = &cp
	return nil
}

func (m *mockMemberRepo) GetByID(_ context.Context, id string) (*model.Member, error) {
	if mem, ok := m.alive(id); ok {
		cp := *mem
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMemberRepo) find(match func(*model.Member) bool) (*model.Member, error) {
	for id := range m.st.members {
		if mem, ok := m.alive(id); ok && match(mem) {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMemberRepo) GetByUsername(_ context.Context, username string) (*model.Member, error) {
	return m.find(func(mem *model.Member) bool { return mem.Username == username })
}

func (m *mockMemberRepo) GetByEmail(_ context.Context, email string) (*model.Member, error) {
	return m.find(func(mem *model.Member) bool { return mem.Email == email })
}

func (m *mockMemberRepo) ListActiveByIDs(_ context.Context, ids []string) ([]model.Member, error) {
	var result []model.Member
	for _, id := range ids {
		if mem, ok := m.alive(id); ok && mem.IsActive {
			result = append(result, *mem)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (m *mockMemberRepo) SearchByUsername(_ context.Context, keyword string, limit int) ([]model.Member, error) {
	var result []model.Member
	for id := range m.st.members {
		if mem, ok := m.alive(id); ok && mem.IsActive && strings.Contains(mem.Username, keyword) {
			result = append(result, *mem)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockMemberRepo) Update(_ context.Context, member *model.Member) error {
	if err := m.st.fail("Member.Update"); err != nil {
		return err
	}
	cp := *member
	m.st.members[member.MemberID] = &cp
	return nil
}

func (m *mockMemberRepo) Delete(_ context.Context, id string) error {
	if err := m.st.fail("Member.Delete"); err != nil {
		return err
	}
	if mem, ok := m.st.members[id]; ok {
		mem.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
	return nil
}

// ── Mock RoomRepository ──

type mockRoomRepo struct {
	st *mockStore
}

func (m *mockRoomRepo) Create(_ context.Context, room *model.Room) error {
	if err := m.st.fail("Room.Create"); err != nil {
		return err
	}
	_ = room.BeforeCreate(nil)
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	cp := *room
	cp.Config = nil
	m.st.rooms[room.RoomID] = &cp
	return nil
}

// GetByID 模拟 Preload("Config.Master")
func (m *mockRoomRepo) GetByID(_ context.Context, id string) (*model.Room, error) {
	r, ok := m.st.rooms[id]
	if !ok || r.IsDeleted {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	if cfg, ok := m.st.configs[id]; ok {
		c := *cfg
		if master, ok := m.st.members[c.MasterID]; ok {
			mc := *master
			c.Master = &mc
		}
		cp.Config = &c
	}
	return &cp, nil
}

func (m *mockRoomRepo) Update(_ context.Context, room *model.Room) error {
	if err := m.st.fail("Room.Update"); err != nil {
		return err
	}
	cp := *room
	cp.Config = nil
	m.st.rooms[room.RoomID] = &cp
	return nil
}

func (m *mockRoomRepo) SoftDelete(_ context.Context, id string, deletedBy string) error {
	if err := m.st.fail("Room.SoftDelete"); err != nil {
		return err
	}
	if r, ok := m.st.rooms[id]; ok && !r.IsDeleted {
		now := time.Now()
		r.IsDeleted = true
		r.DeletedAt = &now
		r.UpdatedBy = &deletedBy
	}
	return nil
}

func (m *mockRoomRepo) ExistsActiveName(_ context.Context, name, excludeID string) (bool, error) {
	for id, r := range m.st.rooms {
		if id != excludeID && !r.IsDeleted && r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRoomRepo) ListByParticipant(_ context.Context, memberID string, offset, limit int) ([]model.Room, int64, error) {
	var all []model.Room
	for id, r := range m.st.rooms {
		if r.IsDeleted {
			continue
		}
		cfg := m.st.configs[id]
		if (cfg != nil && cfg.MasterID == memberID) || m.st.roomMembers[id][memberID] {
			room, _ := m.GetByID(context.Background(), id)
			all = append(all, *room)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if offset >= len(all) {
		return []model.Room{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockRoomRepo) CountMasteredActive(_ context.Context, memberID string) (int64, error) {
	var n int64
	for id, cfg := range m.st.configs {
		if r, ok := m.st.rooms[id]; ok && !r.IsDeleted && cfg.MasterID == memberID {
			n++
		}
	}
	return n, nil
}

func (m *mockRoomRepo) CreateConfig(_ context.Context, cfg *model.RoomConfig) error {
	if err := m.st.fail("Room.CreateConfig"); err != nil {
		return err
	}
	cp := *cfg
	cp.Master = nil
	m.st.configs[cfg.RoomID] = &cp
	return nil
}

func (m *mockRoomRepo) GetConfig(_ context.Context, roomID string) (*model.RoomConfig, error) {
	if cfg, ok := m.st.configs[roomID]; ok {
		cp := *cfg
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRoomRepo) GetConfigForUpdate(ctx context.Context, roomID string) (*model.RoomConfig, error) {
	return m.GetConfig(ctx, roomID)
}

func (m *mockRoomRepo) UpdateMaster(_ context.Context, roomID, masterID string) error {
	if err := m.st.fail("Room.UpdateMaster"); err != nil {
		return err
	}
	if cfg, ok := m.st.configs[roomID]; ok {
		cfg.MasterID = masterID
	}
	return nil
}

// ── Mock RoomMemberRepository ──

type mockRoomMemberRepo struct {
	st *mockStore
}

func (m *mockRoomMemberRepo) Add(_ context.Context, roomID string, memberIDs []string) error {
	if err := m.st.fail("RoomMember.Add"); err != nil {
		return err
	}
	if len(memberIDs) == 0 {
		return nil
	}
	set, ok := m.st.roomMembers[roomID]
	if !ok {
		set = make(map[string]bool)
		m.st.roomMembers[roomID] = set
	}
	for _, id := range memberIDs {
		set[id] = true
	}
	return nil
}

func (m *mockRoomMemberRepo) Remove(_ context.Context, roomID string, memberIDs []string) (int64, error) {
	if err := m.st.fail("RoomMember.Remove"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range memberIDs {
		if m.st.roomMembers[roomID][id] {
			delete(m.st.roomMembers[roomID], id)
			n++
		}
	}
	return n, nil
}

func (m *mockRoomMemberRepo) Exists(_ context.Context, roomID, memberID string) (bool, error) {
	return m.st.roomMembers[roomID][memberID], nil
}

func (m *mockRoomMemberRepo) ListMembers(_ context.Context, roomID string) ([]model.Member, error) {
	var result []model.Member
	for id := range m.st.roomMembers[roomID] {
		if mem, ok := m.st.members[id]; ok && !mem.DeletedAt.Valid {
			result = append(result, *mem)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (m *mockRoomMemberRepo) CountByRooms(_ context.Context, roomIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(roomIDs))
	for _, id := range roomIDs {
		if n := len(m.st.roomMembers[id]); n > 0 {
			counts[id] = int64(n)
		}
	}
	return counts, nil
}

func (m *mockRoomMemberRepo) ListRoomIDsByMember(_ context.Context, memberID string) ([]string, error) {
	var ids []string
	for roomID, set := range m.st.roomMembers {
		if set[memberID] {
			ids = append(ids, roomID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Mock CouponRepository ──

type mockCouponRepo struct {
	st *mockStore
}

func (m *mockCouponRepo) withMembers(c *model.Coupon) model.Coupon {
	cp := *c
	if s, ok := m.st.members[c.SenderID]; ok {
		sc := *s
		cp.Sender = &sc
	}
	if r, ok := m.st.members[c.ReceiverID]; ok {
		rc := *r
		cp.Receiver = &rc
	}
	return cp
}

func (m *mockCouponRepo) Create(_ context.Context, coupon *model.Coupon) error {
	if err := m.st.fail("Coupon.Create"); err != nil {
		return err
	}
	_ = coupon.BeforeCreate(nil)
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now()
	}
	cp := *coupon
	m.st.coupons[coupon.CouponID] = &cp
	return nil
}

func (m *mockCouponRepo) GetByID(_ context.Context, id string) (*model.Coupon, error) {
	if c, ok := m.st.coupons[id]; ok {
		cp := m.withMembers(c)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCouponRepo) ListUnused(_ context.Context, f repository.CouponFilter) ([]model.Coupon, error) {
	var result []model.Coupon
	for _, c := range m.st.coupons {
		if c.IsUsed {
			continue
		}
		if f.RoomID != "" && c.RoomID != f.RoomID {
			continue
		}
		if f.SenderID != "" && c.SenderID != f.SenderID {
			continue
		}
		if f.ReceiverID != "" && c.ReceiverID != f.ReceiverID {
			continue
		}
		if f.ValidOn != nil && !c.ValidOn(*f.ValidOn) {
			continue
		}
		if f.ExpiredBefore != nil && !c.ExpiredOn(*f.ExpiredBefore) {
			continue
		}
		result = append(result, m.withMembers(c))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockCouponRepo) ListByRoom(_ context.Context, roomID string) ([]model.Coupon, error) {
	var result []model.Coupon
	for _, c := range m.st.coupons {
		if c.RoomID == roomID {
			result = append(result, m.withMembers(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockCouponRepo) MarkUsed(_ context.Context, id string, usedAt time.Time) (int64, error) {
	if err := m.st.fail("Coupon.MarkUsed"); err != nil {
		return 0, err
	}
	c, ok := m.st.coupons[id]
	if !ok || c.IsUsed {
		return 0, nil
	}
	c.IsUsed = true
	c.UsedAt = &usedAt
	return 1, nil
}

func (m *mockCouponRepo) DeleteUnusedReceived(_ context.Context, roomID string, receiverIDs []string) (int64, error) {
	if err := m.st.fail("Coupon.DeleteUnusedReceived"); err != nil {
		return 0, err
	}
	targets := make(map[string]bool, len(receiverIDs))
	for _, id := range receiverIDs {
		targets[id] = true
	}
	var n int64
	for id, c := range m.st.coupons {
		if c.RoomID == roomID && targets[c.ReceiverID] && !c.IsUsed {
			delete(m.st.coupons, id)
			n++
		}
	}
	return n, nil
}

// ── Mock CertificateCodeRepository ──

type mockCertificateCodeRepo struct {
	st *mockStore
}

func (m *mockCertificateCodeRepo) Create(_ context.Context, code *model.CertificateCode) error {
	if err := m.st.fail("CertificateCode.Create"); err != nil {
		return err
	}
	_ = code.BeforeCreate(nil)
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	cp := *code
	m.st.certs[code.CertificateID] = &cp
	return nil
}

func (m *mockCertificateCodeRepo) newest(match func(*model.CertificateCode) bool) (*model.CertificateCode, error) {
	var best *model.CertificateCode
	for _, c := range m.st.certs {
		if match(c) && (best == nil || c.CreatedAt.After(best.CreatedAt)) {
			best = c
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockCertificateCodeRepo) FindValid(_ context.Context, memberID, code string, now time.Time) (*model.CertificateCode, error) {
	return m.newest(func(c *model.CertificateCode) bool {
		return c.MemberID == memberID && c.Code == code && c.ExpiresAt.After(now) && !c.IsChecked && c.UsedAt == nil
	})
}

func (m *mockCertificateCodeRepo) FindChecked(_ context.Context, memberID, key string, now time.Time) (*model.CertificateCode, error) {
	return m.newest(func(c *model.CertificateCode) bool {
		return c.MemberID == memberID && c.Key == key && c.IsChecked && c.UsedAt == nil && c.ExpiresAt.After(now)
	})
}

func (m *mockCertificateCodeRepo) Consume(_ context.Context, id string, usedAt time.Time) (int64, error) {
	if err := m.st.fail("CertificateCode.Consume"); err != nil {
		return 0, err
	}
	c, ok := m.st.certs[id]
	if !ok || c.UsedAt != nil {
		return 0, nil
	}
	t := usedAt
	c.UsedAt = &t
	return 1, nil
}

func (m *mockCertificateCodeRepo) Update(_ context.Context, code *model.CertificateCode) error {
	if err := m.st.fail("CertificateCode.Update"); err != nil {
		return err
	}
	cp := *code
	m.st.certs[code.CertificateID] = &cp
	return nil
}

// ── 测试数据辅助 ──

func (st *mockStore) addMember(username string) *model.Member {
	m := &model.Member{
		MemberID:     "m-" + username,
		Username:     username,
		Email:        username + "@ctudy.kr",
		PasswordHash: "$2a$10$placeholder",
		Name:         strings.ToUpper(username[:1]) + username[1:],
		IsActive:     true,
	}
	st.members[m.MemberID] = m
	return m
}

// addRoom 直接写入房间、归属与成员关系
func (st *mockStore) addRoom(id, name, masterID string, memberIDs ...string) {
	st.rooms[id] = &model.Room{RoomID: id, Name: name, AuditModel: model.AuditModel{BaseModel: model.BaseModel{CreatedAt: time.Now()}}}
	st.configs[id] = &model.RoomConfig{RoomID: id, MasterID: masterID}
	set := make(map[string]bool)
	for _, mid := range memberIDs {
		set[mid] = true
	}
	st.roomMembers[id] = set
}

func (st *mockStore) addCoupon(id, roomID, senderID, receiverID string, start, end time.Time, used bool) *model.Coupon {
	c := &model.Coupon{
		CouponID: id, Name: id, RoomID: roomID,
		SenderID: senderID, ReceiverID: receiverID,
		StartDate: start, EndDate: end, IsUsed: used,
	}
	st.coupons[id] = c
	return c
}

// participants 返回房间参与者集合（房主 ∪ 成员）
func (st *mockStore) participants(roomID string) map[string]bool {
	out := make(map[string]bool)
	if cfg, ok := st.configs[roomID]; ok {
		out[cfg.MasterID] = true
	}
	for id := range st.roomMembers[roomID] {
		out[id] = true
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
