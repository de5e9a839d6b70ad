package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ExpoPushClient sends push notifications through Expo's Push API. It needs no
// credentials; the app registers an Expo push token ("ExponentPushToken[...]")
// as its device token.
type ExpoPushClient struct {
	httpClient *http.Client
	url        string
}

type expoPushMessage struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

type expoPushResponse struct {
	Data []expoPushTicket `json:"data"`
}

type expoPushTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "MessageTooBig", ...
	} `json:"details,omitempty"`
}

const (
	expoPushURL = "https://exp.host/--/api/v2/push/send"
	// expoMaxTokens is the number of messages Expo accepts per request.
	expoMaxTokens = 100
)

func NewExpoPushClient() *ExpoPushClient {
	return &ExpoPushClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        expoPushURL,
	}
}

// IsExpoToken reports whether token was issued by Expo rather than FCM.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

// SendToTokens returns the tokens Expo reported as DeviceNotRegistered.
func (c *ExpoPushClient) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	var stale []string
	for start := 0; start < len(tokens); start += expoMaxTokens {
		batch := tokens[start:min(start+expoMaxTokens, len(tokens))]
		dropped, err := c.send(ctx, batch, title, body, data)
		stale = append(stale, dropped...)
		if err != nil {
			return stale, err
		}
	}
	return stale, nil
}

func (c *ExpoPushClient) send(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	payload, err := json.Marshal(expoPushMessage{
		To:       tokens,
		Title:    title,
		Body:     body,
		Data:     data,
		Sound:    "default",
		Priority: "high",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var pushResp expoPushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		// the push was accepted; only the tickets are unreadable
		log.Printf("[ExpoPush] Failed to parse response: %v", err)
		return nil, nil
	}

	var stale []string
	failed := 0
	for i, ticket := range pushResp.Data {
		if ticket.Status == "ok" {
			continue
		}
		failed++
		if ticket.Details.Error == "DeviceNotRegistered" && i < len(tokens) {
			stale = append(stale, tokens[i])
			continue
		}
		log.Printf("[ExpoPush] Token %d failed: %s (error: %s)", i, ticket.Message, ticket.Details.Error)
	}

	log.Printf("[ExpoPush] Sent to %d tokens: %d success, %d failed",
		len(tokens), len(tokens)-failed, failed)
	return stale, nil
}

// PushRouter splits tokens between the Expo and FCM senders by token format.
// Either sender may be nil, in which case its tokens are skipped.
type PushRouter struct {
	fcm  PushSender
	expo PushSender
}

func NewPushRouter(fcm, expo PushSender) *PushRouter {
	return &PushRouter{fcm: fcm, expo: expo}
}

func (r *PushRouter) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	var expoTokens, fcmTokens []string
	for _, t := range tokens {
		if IsExpoToken(t) {
			expoTokens = append(expoTokens, t)
		} else {
			fcmTokens = append(fcmTokens, t)
		}
	}

	var stale []string
	var errs []error
	for _, route := range []struct {
		sender PushSender
		tokens []string
	}{{r.expo, expoTokens}, {r.fcm, fcmTokens}} {
		if len(route.tokens) == 0 {
			continue
		}
		if route.sender == nil {
			log.Printf("[PushRouter] No sender for %d tokens, skipping", len(route.tokens))
			continue
		}
		dropped, err := route.sender.SendToTokens(ctx, route.tokens, title, body, data)
		stale = append(stale, dropped...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return stale, errors.Join(errs...)
}
