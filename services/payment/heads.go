package payment

import (
	"context"
	"strings"

	"student-portal/errors"
	"student-portal/models"
)

// HeadSource supplies the global payment head list.
type HeadSource interface {
	PaymentHeads(ctx context.Context) ([]models.PaymentHead, error)
}

// Resolver turns an application into billable line items.
type Resolver struct {
	heads HeadSource
}

func NewResolver(heads HeadSource) *Resolver {
	return &Resolver{heads: heads}
}

// Resolve prefers the application's own itemized details. Without them it
// matches the global heads by category, then by name substring. The heads
// endpoint is only consulted when existing is empty.
func (r *Resolver) Resolve(ctx context.Context, appType models.ApplicationType, existing []models.PaymentDetail) ([]models.PaymentLineItem, error) {
	if items := itemize(existing); len(items) > 0 {
		return items, nil
	}

	heads, err := r.heads.PaymentHeads(ctx)
	if err != nil {
		return nil, err
	}

	if head, ok := MatchHead(heads, appType); ok {
		return []models.PaymentLineItem{{HeadID: head.ID, Count: 1}}, nil
	}

	return nil, errors.E(errors.NoPaymentHeadsFound,
		"Payment information for "+humanize(appType)+" is not configured. Please contact the office.")
}

func itemize(details []models.PaymentDetail) []models.PaymentLineItem {
	items := make([]models.PaymentLineItem, 0, len(details))
	for _, d := range details {
		if strings.TrimSpace(d.PaymentHeadID) == "" {
			continue
		}
		count := d.Quantity
		if count < 1 {
			count = 1
		}
		items = append(items, models.PaymentLineItem{HeadID: d.PaymentHeadID, Count: count})
	}
	return items
}

// MatchHead returns the first head whose category equals appType, or failing
// that the first whose name contains it. Both comparisons ignore case, and
// underscores in appType also match spaces.
func MatchHead(heads []models.PaymentHead, appType models.ApplicationType) (models.PaymentHead, bool) {
	want := strings.ToLower(appType.String())
	if want == "" {
		return models.PaymentHead{}, false
	}

	for _, h := range heads {
		if strings.ToLower(strings.TrimSpace(h.Category)) == want {
			return h, true
		}
	}

	spaced := strings.ReplaceAll(want, "_", " ")
	for _, h := range heads {
		name := strings.ToLower(h.Name)
		if strings.Contains(name, want) || strings.Contains(name, spaced) {
			return h, true
		}
	}
	return models.PaymentHead{}, false
}

func humanize(t models.ApplicationType) string {
	return strings.ToLower(strings.ReplaceAll(t.String(), "_", " "))
}
