package payment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"student-portal/errors"
	"student-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinks struct {
	created map[string]interface{}
	status  string
}

func (f *fakeLinks) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.created = data
	return map[string]interface{}{"id": "plink_1", "short_url": "https://rzp.io/i/abc"}, nil
}

func (f *fakeLinks) Fetch(linkID string, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return map[string]interface{}{
		"id":     linkID,
		"status": f.status,
		"payments": []interface{}{
			map[string]interface{}{"payment_id": "pay_9", "method": "card"},
		},
	}, nil
}

func TestRazorpayProvider_InitiateAndStatus(t *testing.T) {
	links := &fakeLinks{status: "paid"}
	p := newRazorpayProvider(links, "BDT", nil)
	p.now = func() time.Time { return time.Unix(1700000000, 0) }

	req := models.PaymentInitRequest{
		PSID:       "DUEXCERT",
		Amount:     json.Number("500.5"),
		SuccessURL: "duportal://payment/success?applicationId=123&type=CERTIFICATE",
	}
	req.SetApplication(models.Certificate, "123")

	body, err := p.Initiate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://rzp.io/i/abc", ExtractRedirectURL(body))
	assert.Equal(t, "plink_1", extractSessionKey(body))

	assert.EqualValues(t, 50050, links.created["amount"])
	assert.Equal(t, "BDT", links.created["currency"])
	assert.Equal(t, "123_1700000000", links.created["reference_id"])
	assert.Equal(t, req.SuccessURL, links.created["callback_url"])

	v := NewVerifier(loggedInStore(), p)
	res, err := v.Verify(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusValid, res.Status)
	assert.Equal(t, "plink_1", res.TransactionID)
	assert.Equal(t, "pay_9", res.BankTransactionID)
	assert.Equal(t, "card", res.CardType)
}

func TestRazorpayProvider_RequiresAmount(t *testing.T) {
	p := newRazorpayProvider(&fakeLinks{}, "", nil)
	body, err := p.Initiate(context.Background(), models.PaymentInitRequest{ApplicationID: "1"})
	require.NoError(t, err)
	assert.Empty(t, ExtractRedirectURL(body))
	assert.NotEmpty(t, ExtractMessage(body))
}

func TestRazorpayProvider_UnknownApplication(t *testing.T) {
	p := newRazorpayProvider(&fakeLinks{}, "", nil)
	_, err := p.Status(context.Background(), "404")
	assert.True(t, errors.IsKind(err, errors.NotFound))
}

func TestLinkStatus(t *testing.T) {
	assert.Equal(t, models.StatusValid, linkStatus("PAID"))
	assert.Equal(t, models.StatusInvalid, linkStatus("expired"))
	assert.Equal(t, models.StatusInvalid, linkStatus("cancelled"))
	assert.Equal(t, models.StatusPending, linkStatus("created"))
	assert.Equal(t, models.StatusPending, linkStatus("partially_paid"))
}

type recordedKeys map[string]string

func (k recordedKeys) SessionKey(_ context.Context, applicationID string) (string, error) {
	return k[applicationID], nil
}

func TestRazorpayProvider_StatusAfterRestart(t *testing.T) {
	links := &fakeLinks{status: "paid"}
	p := newRazorpayProvider(links, "", recordedKeys{"123": "plink_7"})

	body, err := p.Status(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusValid), body["status"])
	assert.Equal(t, "plink_7", body["tran_id"])

	_, err = p.Status(context.Background(), "999")
	assert.True(t, errors.IsKind(err, errors.NotFound))
}

func TestNewRazorpayProvider_NeedsCredentials(t *testing.T) {
	_, err := NewRazorpayProvider("", "secret", "INR", nil)
	assert.Error(t, err)
}
