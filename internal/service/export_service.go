package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/repository"
	apperrors "github.com/ThemOfWind/CTUDY-SERVER/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = apperrors.New(apperrors.KindInternal, "生成导出文件失败")
)

// ExportService 导出业务接口
//
// 导出内容以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportRoomCoupons 房主导出房间全部券记录为 Excel
	ExportRoomCoupons(ctx context.Context, actorID, roomID string) (*bytes.Buffer, string, error)
	// CouponCalendar 导出查看者在房间内收到的未使用券为 iCalendar，每张券一个全天事件
	CouponCalendar(ctx context.Context, viewerID, roomID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportRoomCoupons 导出房间券台账为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "券台账"
//   - 第 1 行：房间名称标题（合并单元格）
//   - 第 2 行：表头
//   - 第 3 行起：每张券一行，按创建时间排序

func (s *exportService) ExportRoomCoupons(ctx context.Context, actorID, roomID string) (*bytes.Buffer, string, error) {
	room, cfg, err := loadRoom(ctx, s.repo, s.logger, roomID, false)
	if err != nil {
		return nil, "", err
	}
	if cfg.MasterID != actorID {
		return nil, "", ErrNotRoomMaster
	}

	coupons, err := s.repo.Coupon.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, "", storeError(s.logger, "查询房间券失败", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "券台账"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headers := []string{"券名称", "发放人", "接收人", "开始日期", "结束日期", "状态", "使用时间"}
	widths := []float64{20, 14, 14, 12, 12, 10, 20}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 券台账", room.Name))
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// 数据行
	today := s.now()
	for i := range coupons {
		c := &coupons[i]
		row := 3 + i
		values := []interface{}{
			c.Name,
			memberLabel(c.Sender, c.SenderID),
			memberLabel(c.Receiver, c.ReceiverID),
			c.StartDate.Format(dateLayout),
			c.EndDate.Format(dateLayout),
			couponStatus(c, today),
			"-",
		}
		if c.UsedAt != nil {
			values[6] = c.UsedAt.Format("2006-01-02 15:04")
		}
		for j, v := range values {
			f.SetCellValue(sheetName, cell(colName(j), row), v)
		}
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("券台账_%s.xlsx", room.Name)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// CouponCalendar 导出收到的券为 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *exportService) CouponCalendar(ctx context.Context, viewerID, roomID string) (*bytes.Buffer, string, error) {
	room, cfg, err := loadRoom(ctx, s.repo, s.logger, roomID, false)
	if err != nil {
		return nil, "", err
	}
	ok, err := isParticipant(ctx, s.repo, cfg, viewerID)
	if err != nil {
		return nil, "", storeError(s.logger, "查询房间成员失败", err)
	}
	if !ok {
		return nil, "", ErrNotRoomParticipant
	}

	coupons, err := s.repo.Coupon.ListUnused(ctx, repository.CouponFilter{RoomID: roomID, ReceiverID: viewerID})
	if err != nil {
		return nil, "", storeError(s.logger, "查询收到的券失败", err)
	}

	stamp := s.now().UTC()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Ctudy//Coupon Calendar//KO")
	cal.SetXWRCalName(fmt.Sprintf("%s 券", room.Name))

	for i := range coupons {
		c := &coupons[i]
		event := cal.AddEvent(c.CouponID + "@ctudy")
		event.SetDtStampTime(stamp)
		event.SetSummary(c.Name)
		event.SetDescription(fmt.Sprintf("来自 %s", memberLabel(c.Sender, c.SenderID)))
		event.SetAllDayStartAt(model.DateOf(c.StartDate))
		// 全天事件的 DTEND 不含当天
		event.SetAllDayEndAt(model.DateOf(c.EndDate).AddDate(0, 0, 1))
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("coupons_%s.ics", room.RoomID)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func memberLabel(m *model.Member, fallbackID string) string {
	if m == nil {
		return fallbackID
	}
	return fmt.Sprintf("%s (%s)", m.Name, m.Username)
}

func couponStatus(c *model.Coupon, today time.Time) string {
	switch {
	case c.IsUsed:
		return "已使用"
	case c.ExpiredOn(today):
		return "已过期"
	case c.ValidOn(today):
		return "可使用"
	default:
		return "未开始"
	}
}
