// Package staff validates and stores the roster that mail is triaged against.
package staff

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"mailtriage/internal/database"
	"mailtriage/internal/models"

	"github.com/rs/zerolog"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// SkillExtractor derives skill tags from a description of responsibilities
type SkillExtractor interface {
	ExtractSkills(ctx context.Context, description string) []string
}

// Directory creates and updates staff members
type Directory struct {
	store  *database.Store
	skills SkillExtractor
	logger zerolog.Logger
}

// NewDirectory creates a staff directory; skills may be nil
func NewDirectory(store *database.Store, skills SkillExtractor, logger zerolog.Logger) *Directory {
	return &Directory{
		store:  store,
		skills: skills,
		logger: logger.With().Str("component", "staff").Logger(),
	}
}

// Validate checks the required fields of a staff payload
func Validate(req models.StaffRequest) error {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.Responsibilities) == "" {
		missing = append(missing, "responsibilities")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required: %w", strings.Join(missing, ", "), database.ErrValidation)
	}
	if !emailRegex.MatchString(strings.TrimSpace(req.Email)) {
		return fmt.Errorf("invalid email %q: %w", req.Email, database.ErrValidation)
	}
	return nil
}

// List returns the roster
func (d *Directory) List(ctx context.Context) ([]models.StaffMember, error) {
	return d.store.ListStaff(ctx)
}

// Create validates and stores a new staff member
func (d *Directory) Create(ctx context.Context, req models.StaffRequest) (*models.StaffMember, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	m := &models.StaffMember{}
	d.apply(ctx, m, req)
	if err := d.store.InsertStaff(ctx, m); err != nil {
		return nil, err
	}

	d.logger.Info().Str("staff_id", m.ID).Str("skills", m.Skills).Msg("Staff member created")
	return m, nil
}

// Update replaces the details of a staff member. Skills are extracted again
// only when the responsibilities changed and none were given.
func (d *Directory) Update(ctx context.Context, id string, req models.StaffRequest) (*models.StaffMember, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	m, err := d.store.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(req.Skills) == 0 && strings.TrimSpace(req.Responsibilities) == m.Responsibilities {
		req.Skills = m.SkillList()
	}
	d.apply(ctx, m, req)
	if err := d.store.UpdateStaff(ctx, m); err != nil {
		return nil, err
	}

	d.logger.Info().Str("staff_id", m.ID).Msg("Staff member updated")
	return m, nil
}

func (d *Directory) apply(ctx context.Context, m *models.StaffMember, req models.StaffRequest) {
	m.Name = strings.TrimSpace(req.Name)
	m.Email = strings.ToLower(strings.TrimSpace(req.Email))
	m.Responsibilities = strings.TrimSpace(req.Responsibilities)

	skills := req.Skills
	if len(skills) == 0 && d.skills != nil {
		skills = d.skills.ExtractSkills(ctx, m.Responsibilities)
	}
	m.Skills = joinSkills(skills)
}

func joinSkills(skills []string) string {
	seen := make(map[string]bool, len(skills))
	var out []string
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}
