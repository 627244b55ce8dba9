package database

import (
	"context"
	"fmt"

	"mailtriage/internal/models"
)

const staffColumns = `id, name, email, responsibilities, skills, created_at, updated_at`

// ListStaff returns the staff roster ordered by name
func (s *Store) ListStaff(ctx context.Context) ([]models.StaffMember, error) {
	staff := []models.StaffMember{}
	if err := s.client.Select(ctx, &staff, `SELECT `+staffColumns+` FROM staff ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, nil
}

// GetStaff returns a staff member by ID
func (s *Store) GetStaff(ctx context.Context, id string) (*models.StaffMember, error) {
	var m models.StaffMember
	if err := s.client.Get(ctx, &m, `SELECT `+staffColumns+` FROM staff WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "staff member")
	}
	return &m, nil
}

// GetStaffByEmail returns a staff member by email address
func (s *Store) GetStaffByEmail(ctx context.Context, email string) (*models.StaffMember, error) {
	var m models.StaffMember
	if err := s.client.Get(ctx, &m, `SELECT `+staffColumns+` FROM staff WHERE email = ?`, email); err != nil {
		return nil, notFound(err, "staff member")
	}
	return &m, nil
}

// InsertStaff stores a new staff member
func (s *Store) InsertStaff(ctx context.Context, m *models.StaffMember) error {
	if m.ID == "" {
		m.ID = newID()
	}
	now := s.now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `INSERT INTO staff (` + staffColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.client.Exec(ctx, query, m.ID, m.Name, m.Email, m.Responsibilities, m.Skills, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("staff member %s: %w", m.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert staff member: %w", err)
	}
	return nil
}

// UpdateStaff writes name, email, responsibilities and skills of a staff member
func (s *Store) UpdateStaff(ctx context.Context, m *models.StaffMember) error {
	m.UpdatedAt = s.now()

	query := `UPDATE staff SET name = ?, email = ?, responsibilities = ?, skills = ?, updated_at = ? WHERE id = ?`
	res, err := s.client.Exec(ctx, query, m.Name, m.Email, m.Responsibilities, m.Skills, m.UpdatedAt, m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("staff member %s: %w", m.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to update staff member: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("staff member: %w", ErrNotFound)
	}
	return nil
}
