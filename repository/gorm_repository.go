package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/careerloop/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Interview{},
		&models.InterviewQuestion{},
		&models.ReminderSettings{},
		&models.Availability{},
		&models.CalendarIntegration{},
	)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Interview operations
func (r *GORMRepository) CreateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Create(interview).Error; err != nil {
		slog.Error("Failed to create interview", "error", err)
		return err
	}
	slog.Info("Interview created", "interview_id", interview.ID, "user_id", interview.UserID)
	return nil
}

func (r *GORMRepository) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&interview).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview", "error", err, "interview_id", id)
		return nil, err
	}
	return &interview, nil
}

// InterviewFilter narrows ListInterviews. Zero values mean "no filter";
// a zero Limit falls back to 50.
type InterviewFilter struct {
	Status string
	Type   string
	Limit  int
	Offset int
}

func (r *GORMRepository) ListInterviews(ctx context.Context, userID string, filter InterviewFilter) ([]models.Interview, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var interviews []models.Interview
	err := query.Order("scheduled_time DESC").Limit(limit).Offset(filter.Offset).Find(&interviews).Error
	if err != nil {
		slog.Error("Failed to list interviews", "error", err, "user_id", userID)
		return nil, err
	}
	return interviews, nil
}

// AllInterviews loads every interview row. Used once at startup to warm the
// scheduler's in-memory index.
func (r *GORMRepository) AllInterviews(ctx context.Context) ([]models.Interview, error) {
	var interviews []models.Interview
	if err := r.db.WithContext(ctx).Find(&interviews).Error; err != nil {
		slog.Error("Failed to load interviews", "error", err)
		return nil, err
	}
	return interviews, nil
}

func (r *GORMRepository) UpdateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Save(interview).Error; err != nil {
		slog.Error("Failed to update interview", "error", err, "interview_id", interview.ID)
		return err
	}
	return nil
}

// DeleteInterview removes the row permanently. Cancellation is a status
// transition, not a delete; only this operation drops the record.
func (r *GORMRepository) DeleteInterview(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Interview{}).Error; err != nil {
		slog.Error("Failed to delete interview", "error", err, "interview_id", id)
		return err
	}
	slog.Info("Interview deleted", "interview_id", id)
	return nil
}

// Question operations
func (r *GORMRepository) CreateInterviewQuestion(ctx context.Context, question *models.InterviewQuestion) error {
	if err := r.db.WithContext(ctx).Create(question).Error; err != nil {
		slog.Error("Failed to create interview question", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetInterviewQuestions(ctx context.Context, interviewID string) ([]models.InterviewQuestion, error) {
	var questions []models.InterviewQuestion
	err := r.db.WithContext(ctx).Where("interview_id = ?", interviewID).Order("created_at").Find(&questions).Error
	if err != nil {
		slog.Error("Failed to get interview questions", "error", err, "interview_id", interviewID)
		return nil, err
	}
	return questions, nil
}

// Preference operations
func (r *GORMRepository) GetReminderSettings(ctx context.Context, userID string) (*models.ReminderSettings, error) {
	var settings models.ReminderSettings
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get reminder settings", "error", err, "user_id", userID)
		return nil, err
	}
	return &settings, nil
}

func (r *GORMRepository) SaveReminderSettings(ctx context.Context, settings *models.ReminderSettings) error {
	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		slog.Error("Failed to save reminder settings", "error", err, "user_id", settings.UserID)
		return err
	}
	slog.Info("Reminder settings saved", "user_id", settings.UserID)
	return nil
}

func (r *GORMRepository) GetAvailability(ctx context.Context, userID string) ([]models.Availability, error) {
	var week []models.Availability
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("day_of_week").Find(&week).Error
	if err != nil {
		slog.Error("Failed to get availability", "error", err, "user_id", userID)
		return nil, err
	}
	return week, nil
}

// SaveAvailability replaces the user's weekly template atomically.
func (r *GORMRepository) SaveAvailability(ctx context.Context, userID string, week []models.Availability) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Availability{}).Error; err != nil {
			return err
		}
		for i := range week {
			week[i].UserID = userID
			if err := tx.Create(&week[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to save availability", "error", err, "user_id", userID)
		return err
	}
	slog.Info("Availability saved", "user_id", userID, "days", len(week))
	return nil
}

func (r *GORMRepository) GetCalendarIntegration(ctx context.Context, userID string) (*models.CalendarIntegration, error) {
	var integration models.CalendarIntegration
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&integration).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get calendar integration", "error", err, "user_id", userID)
		return nil, err
	}
	return &integration, nil
}

func (r *GORMRepository) SaveCalendarIntegration(ctx context.Context, integration *models.CalendarIntegration) error {
	if err := r.db.WithContext(ctx).Save(integration).Error; err != nil {
		slog.Error("Failed to save calendar integration", "error", err, "user_id", integration.UserID)
		return err
	}
	slog.Info("Calendar integration saved", "user_id", integration.UserID, "provider", integration.Provider, "connected", integration.Connected)
	return nil
}
