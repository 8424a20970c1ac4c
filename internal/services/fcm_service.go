package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// EntryNotifier is told about every new guestbook entry
type EntryNotifier interface {
	NotifyGuestbookEntry(ctx context.Context, entry models.GuestbookEntry)
}

// NoopNotifier drops notifications
type NoopNotifier struct{}

func (NoopNotifier) NotifyGuestbookEntry(context.Context, models.GuestbookEntry) {}

// FCMService pushes new guestbook entries to the couple's phones through
// the Firebase Cloud Messaging HTTP v1 API
type FCMService struct {
	projectID  string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	endpoint   string
	hostTokens []string
}

// NewFCMService creates a new FCMService from a service account file
func NewFCMService(ctx context.Context, credentialsPath string, hostTokens []string) (*FCMService, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path is required")
	}

	credData, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, credData, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("credentials file has no project_id")
	}

	observability.WithField("project_id", creds.ProjectID).Info("Firebase Cloud Messaging initialized")

	return &FCMService{
		projectID:  creds.ProjectID,
		tokens:     oauth2.ReuseTokenSource(nil, creds.TokenSource),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   "https://fcm.googleapis.com",
		hostTokens: hostTokens,
	}, nil
}

// FCM API message structures
type fcmMessage struct {
	Message fcmMessageBody `json:"message"`
}

type fcmMessageBody struct {
	Token        string            `json:"token"`
	Data         map[string]string `json:"data,omitempty"`
	Notification *fcmNotification  `json:"notification,omitempty"`
	Android      *fcmAndroid       `json:"android,omitempty"`
	APNS         *fcmAPNS          `json:"apns,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroid struct {
	Priority     string                  `json:"priority,omitempty"`
	Notification *fcmAndroidNotification `json:"notification,omitempty"`
}

type fcmAndroidNotification struct {
	ChannelID string `json:"channel_id,omitempty"`
}

type fcmAPNS struct {
	Headers map[string]string `json:"headers,omitempty"`
	Payload *fcmAPNSPayload   `json:"payload,omitempty"`
}

type fcmAPNSPayload struct {
	Aps *fcmAps `json:"aps,omitempty"`
}

type fcmAps struct {
	Alert *fcmApsAlert `json:"alert,omitempty"`
	Sound string       `json:"sound,omitempty"`
}

type fcmApsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NotifyGuestbookEntry sends the entry to every host device. Failures are
// logged and never reach the guest.
func (s *FCMService) NotifyGuestbookEntry(ctx context.Context, entry models.GuestbookEntry) {
	sent := 0
	for _, token := range s.hostTokens {
		if err := s.SendGuestbookEntry(ctx, token, entry); err != nil {
			observability.WithContext(ctx).WithFields(map[string]interface{}{
				"entry_id":     entry.ID,
				"token_prefix": token[:min(12, len(token))],
				"error":        err.Error(),
			}).Warn("FCM send failed")
			continue
		}
		sent++
	}
	if sent > 0 {
		observability.WithContext(ctx).WithFields(map[string]interface{}{
			"entry_id": entry.ID,
			"devices":  sent,
		}).Debug("Guestbook notification sent")
	}
}

// SendGuestbookEntry sends one push notification for a new entry
func (s *FCMService) SendGuestbookEntry(ctx context.Context, fcmToken string, entry models.GuestbookEntry) error {
	token, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	title := fmt.Sprintf("%s left a message", entry.Name)
	body := preview(entry.Message, 80)

	message := fcmMessage{
		Message: fcmMessageBody{
			Token: fcmToken,
			Data: map[string]string{
				"type":     "guestbook_entry",
				"entryId":  entry.ID,
				"side":     string(entry.Side),
				"hasPhoto": fmt.Sprint(entry.HasPhoto()),
			},
			Notification: &fcmNotification{Title: title, Body: body},
			Android: &fcmAndroid{
				Priority:     "high",
				Notification: &fcmAndroidNotification{ChannelID: "guestbook"},
			},
			APNS: &fcmAPNS{
				Headers: map[string]string{
					"apns-priority":  "10",
					"apns-push-type": "alert",
				},
				Payload: &fcmAPNSPayload{
					Aps: &fcmAps{
						Alert: &fcmApsAlert{Title: title, Body: body},
						Sound: "default",
					},
				},
			},
		},
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", s.endpoint, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("FCM API error: status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// preview shortens s to at most n runes
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
