// Package fcm sends OS notifications through Firebase Cloud Messaging web push.
package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/push"
)

// Sender implements push.Sender with the FCM messaging client.
type Sender struct {
	client *messaging.Client
}

// New initializes the Firebase app from a service account file.
func New(ctx context.Context, credentialsFile string) (*Sender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase: init app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: messaging client: %w", err)
	}
	return &Sender{client: client}, nil
}

// Send delivers n to token. Tags let the browser replace older notifications of the same class.
func (s *Sender) Send(ctx context.Context, token string, n domain.OSNotification) error {
	_, err := s.client.Send(ctx, buildMessage(token, n))
	if err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("%w: %v", push.ErrTokenGone, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func buildMessage(token string, n domain.OSNotification) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: map[string]string{"tag": n.Tag},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Icon:  n.Icon,
				Tag:   n.Tag,
			},
		},
	}
}
