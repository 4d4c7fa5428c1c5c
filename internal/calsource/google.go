package calsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/hurajgor/hyprnote/internal/reconcile"
)

// GoogleSource fetches events from the Google Calendar API.
type GoogleSource struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewGoogleSource builds an authenticated Google Calendar fetcher. The
// OAuth token is read from tokenFile; obtaining one is the job of the
// interactive auth flow, not this package.
func NewGoogleSource(ctx context.Context, logger *slog.Logger, clientID, clientSecret, tokenFile string) (*GoogleSource, error) {
	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("google source: load token: %w", err)
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("google source: create service: %w", err)
	}
	return &GoogleSource{service: service, logger: logger}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// Fetch lists every requested calendar over the window. Recurring series
// are expanded server-side into single occurrences that share an iCal UID.
func (g *GoogleSource) Fetch(ctx context.Context, req reconcile.FetchRequest) (reconcile.FetchResult, error) {
	var res reconcile.FetchResult
	for _, calID := range req.CalendarIDs {
		list, err := g.service.Events.List(calID).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(req.From.UTC().Format(time.RFC3339)).
			TimeMax(req.To.UTC().Format(time.RFC3339)).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if err != nil {
			return reconcile.FetchResult{}, &reconcile.FetchError{Source: "google", Err: err}
		}

		for _, item := range list.Items {
			ev, ok := incomingFromGoogle(item, calID)
			if !ok {
				continue
			}
			res.Events = append(res.Events, ev)
			res.Participants = append(res.Participants, googleParticipants(item, ev.TrackingIDEvent)...)
		}
		g.logger.Debug("fetched google calendar", "calendar", calID, "events", len(list.Items))
	}
	return res, nil
}

// incomingFromGoogle normalizes one API event. The iCal UID is the stable
// identity across occurrences of a series; the per-occurrence start date
// disambiguates recurring ones downstream.
func incomingFromGoogle(item *calendar.Event, calendarID string) (reconcile.IncomingEvent, bool) {
	if item == nil || item.Start == nil {
		return reconcile.IncomingEvent{}, false
	}
	tracking := item.ICalUID
	if tracking == "" {
		tracking = item.Id
	}
	if tracking == "" {
		return reconcile.IncomingEvent{}, false
	}

	started, allDay := googleTime(item.Start)
	ended, _ := googleTime(item.End)

	return reconcile.IncomingEvent{
		TrackingIDEvent:    tracking,
		TrackingIDCalendar: calendarID,
		Title:              item.Summary,
		StartedAt:          started,
		EndedAt:            ended,
		IsAllDay:           allDay,
		HasRecurrenceRules: item.RecurringEventId != "" || len(item.Recurrence) > 0,
		RecurrenceSeriesID: item.RecurringEventId,
		Location:           item.Location,
		MeetingLink:        item.HangoutLink,
		Description:        item.Description,
	}, true
}

// googleTime returns the RFC 3339 timestamp, or the bare date and true for
// all-day events.
func googleTime(dt *calendar.EventDateTime) (string, bool) {
	if dt == nil {
		return "", false
	}
	if dt.DateTime != "" {
		return dt.DateTime, false
	}
	return dt.Date, dt.Date != ""
}

func googleParticipants(item *calendar.Event, trackingID string) []reconcile.IncomingParticipant {
	var out []reconcile.IncomingParticipant
	for _, a := range item.Attendees {
		if a == nil || (a.Email == "" && a.DisplayName == "") {
			continue
		}
		name := a.DisplayName
		if name == "" {
			name = a.Email
		}
		out = append(out, reconcile.IncomingParticipant{
			EventTrackingID: trackingID,
			Name:            name,
			Email:           a.Email,
		})
	}
	return out
}
