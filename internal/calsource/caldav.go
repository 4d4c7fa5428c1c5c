package calsource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/teambition/rrule-go"

	"github.com/hurajgor/hyprnote/internal/reconcile"
)

// basicAuthTransport adds credentials and a client identity to every
// request.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "hyprnote/1.0")
	return t.base.RoundTrip(req)
}

// CalDAVSource fetches events from a CalDAV server. Calendar ids are the
// server-relative calendar collection paths.
type CalDAVSource struct {
	client *caldav.Client
	logger *slog.Logger
}

// NewCalDAVSource builds a CalDAV fetcher against endpoint using HTTP
// basic authentication.
func NewCalDAVSource(logger *slog.Logger, endpoint, username, password string) (*CalDAVSource, error) {
	httpClient := &http.Client{Transport: &basicAuthTransport{
		username: username,
		password: password,
		base:     http.DefaultTransport,
	}}
	client, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("caldav source: %w", err)
	}
	return &CalDAVSource{client: client, logger: logger}, nil
}

// FindCalendars discovers the calendar collections of the authenticated
// principal.
func (s *CalDAVSource) FindCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	principal, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("caldav source: find principal: %w", err)
	}
	homeSet, err := s.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("caldav source: find home set: %w", err)
	}
	calendars, err := s.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("caldav source: find calendars: %w", err)
	}
	return calendars, nil
}

// Fetch queries every requested calendar for events inside the window.
// Recurring events arrive as a single VEVENT with an RRULE and are
// expanded locally into per-day occurrences.
func (s *CalDAVSource) Fetch(ctx context.Context, req reconcile.FetchRequest) (reconcile.FetchResult, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{Name: "VCALENDAR", AllProps: true, AllComps: true},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: req.From,
				End:   req.To,
			}},
		},
	}

	var res reconcile.FetchResult
	for _, calPath := range req.CalendarIDs {
		objects, err := s.client.QueryCalendar(ctx, calPath, query)
		if err != nil {
			return reconcile.FetchResult{}, &reconcile.FetchError{Source: "caldav", Err: err}
		}
		for _, obj := range objects {
			if obj.Data == nil {
				continue
			}
			for _, ev := range obj.Data.Events() {
				occurrences, err := incomingFromICal(ev, calPath, req.From, req.To)
				if err != nil {
					s.logger.Warn("skipping unparseable calendar object",
						"path", obj.Path, "error", err)
					continue
				}
				res.Events = append(res.Events, occurrences...)
				if len(occurrences) > 0 {
					res.Participants = append(res.Participants,
						icalParticipants(ev, occurrences[0].TrackingIDEvent)...)
				}
			}
		}
		s.logger.Debug("fetched caldav calendar", "calendar", calPath, "objects", len(objects))
	}
	return res, nil
}

// incomingFromICal normalizes one VEVENT, expanding its RRULE (if any)
// into one occurrence per day inside [from, to].
func incomingFromICal(ev ical.Event, calendarID string, from, to time.Time) ([]reconcile.IncomingEvent, error) {
	uid, err := ev.Props.Text(ical.PropUID)
	if err != nil || uid == "" {
		return nil, fmt.Errorf("event without UID")
	}
	start, err := ev.DateTimeStart(time.UTC)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", uid, err)
	}
	end, _ := ev.DateTimeEnd(time.UTC)

	allDay := false
	if p := ev.Props.Get(ical.PropDateTimeStart); p != nil && p.ValueType() == ical.ValueDate {
		allDay = true
	}

	summary, _ := ev.Props.Text(ical.PropSummary)
	location, _ := ev.Props.Text(ical.PropLocation)
	description, _ := ev.Props.Text(ical.PropDescription)
	meetingLink, _ := ev.Props.Text(ical.PropURL)

	base := reconcile.IncomingEvent{
		TrackingIDEvent:    uid,
		TrackingIDCalendar: calendarID,
		Title:              summary,
		StartedAt:          formatICalTime(start, allDay),
		EndedAt:            formatICalTime(end, allDay),
		IsAllDay:           allDay,
		Location:           location,
		MeetingLink:        meetingLink,
		Description:        description,
	}

	ruleProp := ev.Props.Get(ical.PropRecurrenceRule)
	if ruleProp == nil {
		return []reconcile.IncomingEvent{base}, nil
	}

	opt, err := rrule.StrToROption(ruleProp.Value)
	if err != nil {
		return nil, fmt.Errorf("event %s: parse rrule: %w", uid, err)
	}
	opt.Dtstart = start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("event %s: build rrule: %w", uid, err)
	}

	duration := time.Duration(0)
	if !end.IsZero() {
		duration = end.Sub(start)
	}

	var out []reconcile.IncomingEvent
	for _, occ := range rule.Between(from, to, true) {
		e := base
		e.HasRecurrenceRules = true
		e.RecurrenceSeriesID = uid
		e.StartedAt = formatICalTime(occ, allDay)
		if duration > 0 {
			e.EndedAt = formatICalTime(occ.Add(duration), allDay)
		} else {
			e.EndedAt = ""
		}
		out = append(out, e)
	}
	return out, nil
}

func formatICalTime(t time.Time, allDay bool) string {
	if t.IsZero() {
		return ""
	}
	if allDay {
		return t.Format("2006-01-02")
	}
	return t.UTC().Format(time.RFC3339)
}

func icalParticipants(ev ical.Event, trackingID string) []reconcile.IncomingParticipant {
	var out []reconcile.IncomingParticipant
	for _, p := range ev.Props.Values(ical.PropAttendee) {
		email := strings.TrimPrefix(p.Value, "mailto:")
		name := p.Params.Get(ical.ParamCommonName)
		if name == "" {
			name = email
		}
		if name == "" {
			continue
		}
		out = append(out, reconcile.IncomingParticipant{
			EventTrackingID: trackingID,
			Name:            name,
			Email:           email,
		})
	}
	return out
}
