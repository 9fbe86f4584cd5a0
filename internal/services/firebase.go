package services

import (
	"context"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushService sends reminder notifications through Firebase Cloud Messaging.
type PushService struct {
	client *messaging.Client
}

// InitFirebase initializes the Firebase Admin SDK and returns a push sender.
func InitFirebase(credPath string) (*PushService, error) {
	opt := option.WithCredentialsFile(credPath)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(context.Background())
	if err != nil {
		return nil, err
	}
	return &PushService{client: client}, nil
}

// Send delivers one push notification to the device behind the given FCM
// registration token. Data keys ride along for client-side deep linking.
func (s *PushService) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return err
	}
	slog.Debug("push notification sent", "message_id", id)
	return nil
}
