package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

// Routes bundles the handlers and the per-group middleware.
type Routes struct {
	Public   *PublicHandler
	Host     *HostHandler
	Calendar *CalendarHandler // nil when no calendar provider is configured

	// PublicMiddleware wraps guest routes, typically rate limiting.
	PublicMiddleware []httpx.Middleware
	// HostMiddleware must authenticate the host.
	HostMiddleware []httpx.Middleware
}

func (rt Routes) Register(mux *http.ServeMux) {
	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, httpx.Chain(h, rt.PublicMiddleware...))
	}
	host := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, httpx.Chain(h, rt.HostMiddleware...))
	}

	public("GET /api/v1/public/slots", rt.Public.Slots)
	public("GET /api/v1/public/month", rt.Public.Month)
	public("GET /api/v1/public/free", rt.Public.Free)
	public("POST /api/v1/public/bookings", rt.Public.Create)
	public("POST /api/v1/public/bookings/reschedule", rt.Public.Reschedule)
	public("POST /api/v1/public/bookings/cancel", rt.Public.Cancel)

	host("GET /api/v1/host", rt.Host.GetProfile)
	host("PUT /api/v1/host", rt.Host.PutProfile)
	host("PUT /api/v1/host/timezone", rt.Host.PutTimezone)
	host("GET /api/v1/availability/rules", rt.Host.GetRules)
	host("PUT /api/v1/availability/rules", rt.Host.PutRules)
	host("GET /api/v1/availability/overrides", rt.Host.GetOverrides)
	host("PUT /api/v1/availability/overrides", rt.Host.PutOverride)
	host("DELETE /api/v1/availability/overrides", rt.Host.DeleteOverride)
	host("GET /api/v1/event-types", rt.Host.ListEventTypes)
	host("POST /api/v1/event-types", rt.Host.CreateEventType)
	host("PUT /api/v1/event-types/{id}", rt.Host.UpdateEventType)
	host("DELETE /api/v1/event-types/{id}", rt.Host.DeactivateEventType)
	host("GET /api/v1/bookings", rt.Host.ListBookings)
	host("POST /api/v1/bookings/{id}/status", rt.Host.SetBookingStatus)
	host("GET /api/v1/webhooks", rt.Host.ListWebhooks)
	host("POST /api/v1/webhooks", rt.Host.CreateWebhook)
	host("DELETE /api/v1/webhooks/{id}", rt.Host.DeleteWebhook)

	if rt.Calendar != nil {
		host("GET /api/v1/calendar/connect", rt.Calendar.Connect)
		public("GET /api/v1/calendar/callback", rt.Calendar.Callback)
	}
}
