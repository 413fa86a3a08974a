package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hostel-allocation-backend/internal/model"
)

// GetStudent fetches a student by id.
func (s *gormStore) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	var student model.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to fetch student %d: %w", id, err)
	}
	return &student, nil
}

// GetStudents fetches a batch of students and fails if any id is unknown.
func (s *gormStore) GetStudents(ctx context.Context, ids []int64) ([]model.Student, error) {
	var students []model.Student
	if err := s.db.WithContext(ctx).Find(&students, ids).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch students: %w", err)
	}
	if len(students) != len(ids) {
		return nil, ErrStudentNotFound
	}
	return students, nil
}

// UpsertProfile creates or replaces a student's compatibility profile.
func (s *gormStore) UpsertProfile(ctx context.Context, profile *model.CompatibilityProfile) error {
	if _, err := s.GetStudent(ctx, profile.StudentID); err != nil {
		return err
	}
	profile.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(profile).Error
}

// GetProfiles fetches the profiles for a set of students. Students without a
// saved profile are simply absent from the result; the scorer treats missing
// attributes as neutral.
func (s *gormStore) GetProfiles(ctx context.Context, studentIDs []int64) ([]model.CompatibilityProfile, error) {
	var profiles []model.CompatibilityProfile
	if err := s.db.WithContext(ctx).
		Where("student_id IN ?", studentIDs).
		Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch compatibility profiles: %w", err)
	}
	return profiles, nil
}
