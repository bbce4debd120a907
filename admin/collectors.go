// Package admin implements the collector-account management panel:
// listing, creating, and deleting collector accounts against the
// admin-scoped endpoints.
package admin

import (
	"context"
	"strings"

	"wastetrack/api"
	"wastetrack/client"
	"wastetrack/models"
	"wastetrack/notify"
)

// CreateForm holds the new-collector input fields. The form survives a
// failed create so the operator can correct it.
type CreateForm struct {
	Username      string
	FullName      string
	Email         string
	Phone         string
	Password      string
	VehicleNumber string
	VehicleType   string
}

// Panel manages collector accounts. Confirm gates deletions; it
// receives a prompt and returns whether the operator agreed.
type Panel struct {
	client  *client.Client
	notify  notify.Notifier
	confirm func(prompt string) bool

	collectors []models.CollectorView
	form       CreateForm
}

// NewPanel builds a panel. confirm may be nil, in which case every
// delete is refused.
func NewPanel(c *client.Client, n notify.Notifier, confirm func(prompt string) bool) *Panel {
	if n == nil {
		n = notify.Discard()
	}
	return &Panel{client: c, notify: n, confirm: confirm}
}

// Collectors returns the most recently fetched list.
func (p *Panel) Collectors() []models.CollectorView { return p.collectors }

// Form returns a pointer to the create form for the caller to fill in.
func (p *Panel) Form() *CreateForm { return &p.form }

// Refresh fetches the collector list. The backend is tolerated to
// return heterogeneous record shapes; each is normalized before use.
// On failure the list is emptied and a notification raised; there is
// no automatic retry.
func (p *Panel) Refresh(ctx context.Context) {
	var raw []map[string]any
	if err := p.client.Get(ctx, api.CollectorListEndpoint, &raw); err != nil {
		p.collectors = nil
		p.notify.Error("Failed to load collectors")
		return
	}
	views := make([]models.CollectorView, 0, len(raw))
	for _, rec := range raw {
		views = append(views, models.NormalizeCollector(rec))
	}
	p.collectors = views
}

// Create posts the current form. The username is lower-cased and
// trimmed; vehicle fields are sent only when non-empty. Success
// resets the form and refreshes the list; failure surfaces the
// backend message (or a generic fallback) and preserves the form.
func (p *Panel) Create(ctx context.Context) bool {
	args := api.CreateCollectorArgs{
		Username:      strings.ToLower(strings.TrimSpace(p.form.Username)),
		Email:         p.form.Email,
		Password:      p.form.Password,
		FullName:      p.form.FullName,
		Phone:         p.form.Phone,
		VehicleNumber: p.form.VehicleNumber,
		VehicleType:   p.form.VehicleType,
	}
	if err := p.client.Post(ctx, api.AdminCollectorsEndpoint, args, nil); err != nil {
		msg := client.ErrorMessage(err)
		if _, ok := err.(*client.APIError); !ok || msg == "" {
			msg = "Failed to create collector"
		}
		p.notify.Error(msg)
		return false
	}
	p.notify.Success("Collector created successfully!")
	p.form = CreateForm{}
	p.Refresh(ctx)
	return true
}

// Delete removes a collector after interactive confirmation. Success
// refreshes the list; failure leaves it unchanged, stale until the
// next refresh.
func (p *Panel) Delete(ctx context.Context, userID string) bool {
	if p.confirm == nil || !p.confirm("Delete this collector?") {
		return false
	}
	if err := p.client.Delete(ctx, api.AdminCollectorsEndpoint+"/"+userID); err != nil {
		msg := client.ErrorMessage(err)
		if _, ok := err.(*client.APIError); !ok || msg == "" {
			msg = "Failed to delete collector"
		}
		p.notify.Error(msg)
		return false
	}
	p.notify.Success("Collector deleted")
	p.Refresh(ctx)
	return true
}
