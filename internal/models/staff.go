package models

import (
	"strings"
	"time"
)

// StaffMember is a person mail can be assigned to
type StaffMember struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	Responsibilities string    `db:"responsibilities" json:"responsibilities"`
	Skills           string    `db:"skills" json:"skills"` // comma separated tags
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// SkillList returns the skill tags as a slice
func (s StaffMember) SkillList() []string {
	var skills []string
	for _, skill := range strings.Split(s.Skills, ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}

// StaffRequest is the payload for creating or updating a staff member
// @Description Staff member payload
type StaffRequest struct {
	Name             string   `json:"name" yaml:"name" example:"Mario Rossi"`
	Email            string   `json:"email" yaml:"email" example:"mario@studio.it"`
	Responsibilities string   `json:"responsibilities" yaml:"responsibilities" example:"Contenzioso tributario"`
	Skills           []string `json:"skills,omitempty" yaml:"skills"`
}
