package email

import (
	"fmt"
	"net/smtp"

	"github.com/shopspring/decimal"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	currency string
	sendMail sendFunc
}

func NewService(host, port, from, currency string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		currency: currency,
		sendMail: smtp.SendMail,
	}
}

// SendOrderConfirmation mails the paid order summary to its contact address.
func (s *Service) SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []OrderItem) error {
	subject := fmt.Sprintf("Order confirmation #%s", shortID(orderID))
	body := BuildOrderConfirmationBody(orderID, s.currency, total, items)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, nil, s.from, []string{to}, []byte(msg))
}

func shortID(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}
