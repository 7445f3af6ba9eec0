package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrUnregistered reports a token the push service no longer accepts.
var ErrUnregistered = errors.New("device token unregistered")

// Message is a push notification payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers a message to one device token.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// FCMSender sends through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initializes a Firebase app from a service account file.
// An empty projectID is read from the credentials.
func NewFCMSender(ctx context.Context, credentialsFile, projectID string) (*FCMSender, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting messaging client: %w", err)
	}
	return &FCMSender{client: client}, nil
}

// Send delivers msg to token.
func (f *FCMSender) Send(ctx context.Context, token string, msg Message) error {
	_, err := f.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if err == nil {
		return nil
	}
	if messaging.IsUnregistered(err) {
		return fmt.Errorf("%w: %v", ErrUnregistered, err)
	}
	return fmt.Errorf("sending push: %w", err)
}

// LogSender logs messages instead of sending them.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a sender that writes to log.
func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log.Named("push")}
}

// Send logs msg.
func (l *LogSender) Send(_ context.Context, token string, msg Message) error {
	l.log.Info("push",
		zap.String("token", redact(token)),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.Any("data", msg.Data))
	return nil
}

func redact(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:8] + "…"
}
