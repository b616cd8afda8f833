package services

import (
	"testing"

	"github.com/biglong-lab/woyu-money-sub004/config"
	"github.com/biglong-lab/woyu-money-sub004/models"
)

func TestNewEmailServiceDisabledWithoutRecipient(t *testing.T) {
	cfg := &config.Config{}
	cfg.SMTP.Host = "smtp.example.com"
	if s := NewEmailService(cfg); s != nil {
		t.Error("email service without notify address must be nil")
	}
}

func TestEmailMessageHeaders(t *testing.T) {
	cfg := &config.Config{}
	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.Port = 587
	cfg.SMTP.From = "engine@example.com"
	cfg.SMTP.Notify = "owner@example.com"

	s := NewEmailService(cfg)
	if s == nil {
		t.Fatal("email service is nil")
	}
	m := s.buildMessage(models.PaymentItem{ID: 3, Name: "Аренда", TotalAmount: dec("1200")})
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "owner@example.com" {
		t.Errorf("To = %v", got)
	}
	if got := m.GetHeader("From"); len(got) != 1 || got[0] != "engine@example.com" {
		t.Errorf("From = %v", got)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Позиция «Аренда» полностью оплачена" {
		t.Errorf("Subject = %v", got)
	}
}
