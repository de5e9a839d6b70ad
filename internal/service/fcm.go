package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushSender delivers one notification to a set of device tokens.
type PushSender interface {
	// SendToTokens returns the tokens the provider reported as no longer registered.
	SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (stale []string, err error)
}

// FCMClient wraps the Firebase Cloud Messaging client.
type FCMClient struct {
	client *messaging.Client
}

// NewFCMClient builds a messaging client from service account fields. The
// private key may carry literal "\n" sequences as it does in .env files.
func NewFCMClient(ctx context.Context, projectID, clientEmail, privateKey string) (*FCMClient, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.Printf("[FCM] Initialized for project: %s", projectID)
	return &FCMClient{client: client}, nil
}

// fcmMaxTokens is the multicast limit of one FCM call.
const fcmMaxTokens = 500

func (c *FCMClient) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	var stale []string
	for start := 0; start < len(tokens); start += fcmMaxTokens {
		end := min(start+fcmMaxTokens, len(tokens))
		batch := tokens[start:end]

		response, err := c.client.SendEachForMulticast(ctx, buildMulticast(batch, title, body, data))
		if err != nil {
			return stale, fmt.Errorf("send multicast: %w", err)
		}

		log.Printf("[FCM] Sent to %d tokens: %d success, %d failure",
			len(batch), response.SuccessCount, response.FailureCount)

		for i, resp := range response.Responses {
			if resp.Success {
				continue
			}
			if messaging.IsUnregistered(resp.Error) {
				stale = append(stale, batch[i])
				continue
			}
			log.Printf("[FCM] Token %d failed: %v", start+i, resp.Error)
		}
	}
	return stale, nil
}

func buildMulticast(tokens []string, title, body string, data map[string]string) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}
