package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/lifely/lifely/internal/logging"
	"github.com/lifely/lifely/internal/models"
)

const (
	defaultCalendarID = "primary"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	maxResultsPerPage = 2500
)

// StoredToken is the authorized-user token file written by the Google
// client libraries after the consent flow.
type StoredToken struct {
	Token        string    `json:"token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scopes       []string  `json:"scopes"`
	Expiry       time.Time `json:"expiry"`
}

// LoadToken reads a stored token file.
func LoadToken(path string) (*StoredToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok StoredToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	if tok.RefreshToken == "" && tok.accessToken() == "" {
		return nil, fmt.Errorf("token file %s has no credentials", path)
	}
	return &tok, nil
}

func (t *StoredToken) accessToken() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Token
}

// TokenSource returns a refreshing token source for the stored credentials.
func (t *StoredToken) TokenSource(ctx context.Context) oauth2.TokenSource {
	tokenURL := t.TokenURI
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	cfg := &oauth2.Config{
		ClientID:     t.ClientID,
		ClientSecret: t.ClientSecret,
		Scopes:       t.Scopes,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
	return cfg.TokenSource(ctx, &oauth2.Token{
		AccessToken:  t.accessToken(),
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.Expiry,
	})
}

// GoogleSource fetches events with the Calendar API.
type GoogleSource struct {
	service    *gcal.Service
	calendarID string
	logger     *slog.Logger
}

// NewGoogleSource builds a source authorized by the token file at
// tokenFile. Extra client options are appended, which tests use to point at
// a fake server.
func NewGoogleSource(ctx context.Context, tokenFile, calendarID string, logger *slog.Logger, opts ...option.ClientOption) (*GoogleSource, error) {
	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	clientOpts := append([]option.ClientOption{option.WithTokenSource(tok.TokenSource(ctx))}, opts...)
	service, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return NewGoogleSourceFromService(service, calendarID, logger), nil
}

// NewGoogleSourceFromService wraps an existing service.
func NewGoogleSourceFromService(service *gcal.Service, calendarID string, logger *slog.Logger) *GoogleSource {
	if calendarID == "" {
		calendarID = defaultCalendarID
	}
	return &GoogleSource{
		service:    service,
		calendarID: calendarID,
		logger:     logging.OrDiscard(logger),
	}
}

// Name implements Source.
func (s *GoogleSource) Name() string {
	return "google:" + s.calendarID
}

// UserEmail returns the account email, which is the id of the primary
// calendar.
func (s *GoogleSource) UserEmail(ctx context.Context) (string, error) {
	entry, err := s.service.CalendarList.Get(defaultCalendarID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get primary calendar: %w", err)
	}
	return entry.Id, nil
}

// Fetch implements Source. Recurring events are expanded by the provider and
// every page is followed.
func (s *GoogleSource) Fetch(ctx context.Context, year int) ([]models.RawEvent, error) {
	if err := validYear(year); err != nil {
		return nil, err
	}
	start, end := YearRange(year)

	var events []models.RawEvent
	pages := 0
	err := s.service.Events.List(s.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResultsPerPage).
		ShowDeleted(false).
		Pages(ctx, func(page *gcal.Events) error {
			pages++
			for _, item := range page.Items {
				events = append(events, convertEvent(item))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	s.logger.Info("fetched calendar events",
		"calendar", s.calendarID,
		"year", year,
		"events", len(events),
		"pages", pages)
	return events, nil
}

func convertEvent(item *gcal.Event) models.RawEvent {
	out := models.RawEvent{
		ID:               item.Id,
		Status:           item.Status,
		Summary:          item.Summary,
		Description:      item.Description,
		Location:         item.Location,
		Start:            convertTime(item.Start),
		End:              convertTime(item.End),
		Created:          item.Created,
		Updated:          item.Updated,
		RecurringEventID: item.RecurringEventId,
	}
	for _, a := range item.Attendees {
		if a == nil {
			continue
		}
		out.Attendees = append(out.Attendees, models.RawAttendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			Self:           a.Self,
			ResponseStatus: a.ResponseStatus,
		})
	}
	if item.Organizer != nil {
		out.Organizer = &models.RawOrganizer{
			Email:       item.Organizer.Email,
			DisplayName: item.Organizer.DisplayName,
			Self:        item.Organizer.Self,
		}
	}
	return out
}

func convertTime(t *gcal.EventDateTime) models.RawEventTime {
	if t == nil {
		return models.RawEventTime{}
	}
	return models.RawEventTime{Date: t.Date, DateTime: t.DateTime, TimeZone: t.TimeZone}
}
