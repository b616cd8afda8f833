package services

import (
	"context"
	"fmt"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/config"
	"github.com/biglong-lab/woyu-money-sub004/models"
	"gopkg.in/gomail.v2"
)

// EmailService отправляет уведомления о погашенных позициях
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

var _ Notifier = (*EmailService)(nil)

// NewEmailService создает новый экземпляр EmailService.
// Возвращает nil, если адрес для уведомлений не задан.
func NewEmailService(cfg *config.Config) *EmailService {
	if cfg.SMTP.Notify == "" || cfg.SMTP.Host == "" {
		return nil
	}
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
		to:     cfg.SMTP.Notify,
	}
}

// buildMessage формирует письмо о полной оплате позиции
func (s *EmailService) buildMessage(item models.PaymentItem) *gomail.Message {
	subject := fmt.Sprintf("Позиция «%s» полностью оплачена", item.Name)
	body := fmt.Sprintf(`
		<h2>Позиция оплачена</h2>
		<p>Позиция: #%d %s</p>
		<p>Сумма: %s</p>
		<p>Дата: %s</p>
	`, item.ID, item.Name, item.TotalAmount.StringFixed(models.MoneyPlaces), time.Now().Format("02.01.2006 15:04:05"))

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

// NotifyItemPaid отправляет уведомление о полной оплате позиции
func (s *EmailService) NotifyItemPaid(ctx context.Context, item models.PaymentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.buildMessage(item)); err != nil {
		return fmt.Errorf("ошибка отправки email: %v", err)
	}
	return nil
}
