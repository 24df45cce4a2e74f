package services

import (
	"bytes"
	"context"
	"html/template"

	"student-portal/logger"
	"student-portal/models"
	"student-portal/session"
	"student-portal/utils"
)

// Mailer sends one HTML mail.
type Mailer interface {
	Send(to, subject, body string, attachments ...Attachment) error
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; }
        .header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; border-radius: 5px; }
        .content { background-color: white; padding: 20px; margin-top: 20px; border-radius: 5px; }
        .label { font-weight: bold; color: #2196F3; }
    </style>
</head>
<body>
<div class="container">
    <div class="header"><h2>Payment Received</h2></div>
    <div class="content">
        <p>Dear {{.Name}},</p>
        <p>Your payment for application <b>{{.ApplicationID}}</b> has been confirmed.</p>
        <p><span class="label">Transaction:</span> {{.TransactionID}}</p>
        {{if .BankTransactionID}}<p><span class="label">Bank reference:</span> {{.BankTransactionID}}</p>{{end}}
        {{if .CardType}}<p><span class="label">Paid with:</span> {{.CardType}}</p>{{end}}
        <p><span class="label">Confirmed at:</span> {{.CheckedAt.Format "02 Jan 2006 15:04 MST"}}</p>
    </div>
</div>
</body>
</html>`))

type receiptData struct {
	models.VerificationResult
	Name string
}

// ReceiptNotifier mails the logged-in student when a payment is confirmed.
type ReceiptNotifier struct {
	store  session.Store
	mailer Mailer
	pool   IPool
}

func NewReceiptNotifier(store session.Store, mailer Mailer, pool IPool) *ReceiptNotifier {
	if pool == nil {
		pool = inline{}
	}
	return &ReceiptNotifier{store: store, mailer: mailer, pool: pool}
}

// PaymentVerified queues a receipt for VALID results.
func (n *ReceiptNotifier) PaymentVerified(ctx context.Context, res models.VerificationResult) {
	if res.Status != models.StatusValid || n.mailer == nil {
		return
	}
	profile, err := session.LoadProfile(ctx, n.store)
	if err != nil {
		logger.Warn("loading profile for receipt: %v", err)
		return
	}
	if profile == nil || utils.ValidateEmail(profile.Email) != nil {
		logger.Debug("no email on profile, skipping receipt for %s", res.ApplicationID)
		return
	}

	var body bytes.Buffer
	if err := receiptTemplate.Execute(&body, receiptData{VerificationResult: res, Name: profile.Name}); err != nil {
		logger.Error("rendering receipt for %s: %v", res.ApplicationID, err)
		return
	}

	to := profile.Email
	n.pool.Submit(func() {
		if err := n.mailer.Send(to, "Payment received for application "+res.ApplicationID, body.String()); err != nil {
			logger.Warn("receipt for %s not sent: %v", res.ApplicationID, err)
		}
	})
}
