package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liableapp/liable/internal/logger"
	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/repository"
	"github.com/liableapp/liable/internal/validation"
)

type UserService struct {
	userRepository repository.UserRepository
	log            *slog.Logger
}

func NewUserService(userRepository repository.UserRepository) *UserService {
	return &UserService{
		userRepository: userRepository,
		log:            logger.For("users"),
	}
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepository.ByID(ctx, id)
}

// Count reports how many planners are registered.
func (s *UserService) Count(ctx context.Context) (int, error) {
	count, err := s.userRepository.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Create registers a planner. stripeCustomerID may be empty for planners
// who never set an incentive.
func (s *UserService) Create(ctx context.Context, firstName, lastName, email, stripeCustomerID string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	var errs validation.Errors
	errs.Check(validation.ValidateName("first name", firstName))
	errs.Check(validation.ValidateName("last name", lastName))
	errs.Check(validation.ValidateEmail(email))
	err := errs.Err()
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:        uuid.New().String(),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     email,
		CreatedAt: time.Now(),
	}
	if customer := strings.TrimSpace(stripeCustomerID); customer != "" {
		user.StripeCustomerID = &customer
	}

	err = s.userRepository.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("planner created", "user_id", user.ID, "has_payment_method", user.HasPaymentMethod())
	return user, nil
}
