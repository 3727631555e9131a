package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/config"
)

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewSender 根据配置创建发送器；未配置 SMTP 时退化为仅记录日志
func NewSender(cfg *config.MailConfig, logger *zap.Logger) Sender {
	logger = logger.Named("mail")
	if cfg.SMTPHost == "" {
		logger.Warn("未配置 SMTP，邮件仅输出到日志")
		return &logSender{logger: logger}
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(10 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		logger.Error("创建 SMTP 客户端失败，邮件仅输出到日志", zap.Error(err))
		return &logSender{logger: logger}
	}
	return &smtpSender{
		from:    cfg.From,
		deliver: client.DialAndSendWithContext,
		logger:  logger,
	}
}

// ── SMTP ──

type smtpSender struct {
	from    string
	deliver func(ctx context.Context, msgs ...*gomail.Msg) error
	logger  *zap.Logger
}

func (s *smtpSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := newMessage(s.from, to, subject, body)
	if err != nil {
		return err
	}

	if err := s.deliver(ctx, msg); err != nil {
		s.logger.Error("发送邮件失败", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	s.logger.Info("邮件已发送", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// newMessage 构造纯文本 UTF-8 邮件，地址经过校验，主题按 RFC 2047 编码
func newMessage(from, to, subject, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg(gomail.WithCharset(gomail.CharsetUTF8))
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("发件人地址无效: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("收件人地址无效: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

// ── 日志 ──

type logSender struct {
	logger *zap.Logger
}

func (s *logSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("邮件（未发送）",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
