package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/LeBoy2525/assist-backend/internal/logger"
	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
)

// NotificationRepo хранилище ленты уведомлений со стороны сервиса.
type NotificationRepo interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// UserDirectory разрешает адресатов уведомлений в учётные записи.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
}

// ProviderDirectory разрешает адрес "provider:<id>" в email исполнителя.
type ProviderDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
}

// Pusher доставляет событие подключённому пользователю в реальном времени.
type Pusher interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// NotificationService ведёт ленту уведомлений и рассылает события.
// Доставка best-effort: каждое событие сохраняется в ленте адресата, а
// push в реальном времени — бонус для подключённых.
type NotificationService struct {
	repo      NotificationRepo
	users     UserDirectory
	providers ProviderDirectory
	pusher    Pusher
}

func NewNotificationService(repo NotificationRepo, users UserDirectory, providers ProviderDirectory, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, users: users, providers: providers, pusher: pusher}
}

// Notify рассылает событие адресату. Адресат задаётся одним из способов:
// email пользователя, роль "admin" (все активные админы) или
// "provider:<uuid>" — исполнитель по идентификатору анкеты.
func (s *NotificationService) Notify(ctx context.Context, event, recipient string, data map[string]interface{}) error {
	userIDs, err := s.resolveRecipients(ctx, recipient)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return fmt.Errorf("notification service: marshal payload %w", err)
	}

	for _, userID := range userIDs {
		notification := &models.Notification{
			UserID:  userID,
			Payload: payload,
			IsRead:  false,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			return fmt.Errorf("notification service: create %w", err)
		}

		if s.pusher != nil {
			if err := s.pusher.BroadcastToUser(userID, event, data); err != nil && logger.Log != nil {
				logger.Log.WithError(err).Debugf("notification service: push %s не доставлен", event)
			}
		}
	}

	return nil
}

// resolveRecipients переводит адресата в список userID.
func (s *NotificationService) resolveRecipients(ctx context.Context, recipient string) ([]uuid.UUID, error) {
	if recipient == models.RoleAdmin {
		admins, err := s.users.ListByRole(ctx, models.RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("notification service: list admins %w", err)
		}
		ids := make([]uuid.UUID, 0, len(admins))
		for _, u := range admins {
			ids = append(ids, u.ID)
		}
		return ids, nil
	}

	email := recipient
	if providerID, ok := strings.CutPrefix(recipient, "provider:"); ok {
		id, err := uuid.Parse(providerID)
		if err != nil {
			return nil, fmt.Errorf("notification service: некорректный адрес %q", recipient)
		}
		provider, err := s.providers.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("notification service: исполнитель не найден %w", err)
		}
		email = provider.Email
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// У клиента без учётной записи ленты нет; это не сбой рассылки.
		if logger.Log != nil {
			logger.Log.Debugf("notification service: у адресата %s нет учётной записи", email)
		}
		return nil, nil
	}
	return []uuid.UUID{user.ID}, nil
}

// List возвращает ленту уведомлений пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	notifications, err := s.repo.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище уведомлений недоступно")
	}
	return notifications, nil
}

// MarkAsRead отмечает уведомление прочитанным; чужое уведомление недоступно.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено")
	}
	if notification.UserID != userID {
		return apperror.ErrForbidden
	}
	if err := s.repo.MarkAsRead(ctx, id); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось отметить уведомление")
	}
	return nil
}

// MarkAllAsRead отмечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось отметить уведомления")
	}
	return nil
}

// CountUnread возвращает число непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище уведомлений недоступно")
	}
	return count, nil
}
