package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/identity-service/internal/domain"
	pkgkafka "github.com/utafrali/identity-service/pkg/kafka"
)

// Kafka topic constants for identity domain events.
const (
	TopicUserRegistered      = "identity.user.registered"
	TopicUserDeactivated     = "identity.user.deactivated"
	TopicUserPasswordChanged = "identity.user.password_changed"
	TopicUserRoleChanged     = "identity.user.role_changed"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceIdentityService = "identity-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

// UserDeactivatedData is the payload for a user.deactivated event.
type UserDeactivatedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserPasswordChangedData is the payload for a user.password_changed event.
type UserPasswordChangedData struct {
	UserID string `json:"user_id"`
}

// UserRoleChangedData is the payload for a user.role_changed event.
type UserRoleChangedData struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	Granted bool   `json:"granted"`
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User, roles []string) error {
	data := UserRegisteredData{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       roles,
	}

	return p.publish(ctx, TopicUserRegistered, user.ID, data)
}

// PublishUserDeactivated publishes a user.deactivated event.
func (p *Producer) PublishUserDeactivated(ctx context.Context, user *domain.User) error {
	data := UserDeactivatedData{
		UserID: user.ID,
		Email:  user.Email,
	}

	return p.publish(ctx, TopicUserDeactivated, user.ID, data)
}

// PublishUserPasswordChanged publishes a user.password_changed event.
func (p *Producer) PublishUserPasswordChanged(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicUserPasswordChanged, userID, UserPasswordChangedData{UserID: userID})
}

// PublishUserRoleChanged publishes a user.role_changed event.
func (p *Producer) PublishUserRoleChanged(ctx context.Context, userID, role string, granted bool) error {
	data := UserRoleChangedData{
		UserID:  userID,
		Role:    role,
		Granted: granted,
	}

	return p.publish(ctx, TopicUserRoleChanged, userID, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}
