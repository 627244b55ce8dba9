package staff

import (
	"context"
	"testing"

	"mailtriage/internal/database"
	"mailtriage/internal/database/dbtest"
	"mailtriage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSkills struct {
	calls int
	tags  []string
}

func (f *fakeSkills) ExtractSkills(ctx context.Context, description string) []string {
	f.calls++
	return f.tags
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     models.StaffRequest
		wantErr string
	}{
		{"valid", models.StaffRequest{Name: "Anna", Email: "anna@studio.it", Responsibilities: "Paghe"}, ""},
		{"missing all", models.StaffRequest{}, "name, email, responsibilities required"},
		{"missing responsibilities", models.StaffRequest{Name: "Anna", Email: "anna@studio.it"}, "responsibilities required"},
		{"bad email", models.StaffRequest{Name: "Anna", Email: "anna@", Responsibilities: "Paghe"}, "invalid email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, database.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreate_ExtractsSkills(t *testing.T) {
	ctx := context.Background()
	skills := &fakeSkills{tags: []string{"Paghe", "INPS", "paghe", " "}}
	d := NewDirectory(dbtest.NewStore(t), skills, zerolog.Nop())

	m, err := d.Create(ctx, models.StaffRequest{Name: " Anna Bianchi ", Email: "Anna@Studio.it", Responsibilities: "Paghe e contributi"})
	require.NoError(t, err)
	assert.Equal(t, "Anna Bianchi", m.Name)
	assert.Equal(t, "anna@studio.it", m.Email)
	assert.Equal(t, "paghe, inps", m.Skills)
	assert.Equal(t, 1, skills.calls)

	_, err = d.Create(ctx, models.StaffRequest{Name: "Altra", Email: "anna@studio.it", Responsibilities: "X"})
	assert.ErrorIs(t, err, database.ErrDuplicate)
}

func TestCreate_ExplicitSkillsSkipExtraction(t *testing.T) {
	skills := &fakeSkills{}
	d := NewDirectory(dbtest.NewStore(t), skills, zerolog.Nop())

	m, err := d.Create(context.Background(), models.StaffRequest{
		Name: "Luca", Email: "luca@studio.it", Responsibilities: "730", Skills: []string{"730", "IRPEF"},
	})
	require.NoError(t, err)
	assert.Equal(t, "730, irpef", m.Skills)
	assert.Zero(t, skills.calls)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	skills := &fakeSkills{tags: []string{"paghe"}}
	d := NewDirectory(dbtest.NewStore(t), skills, zerolog.Nop())

	m, err := d.Create(ctx, models.StaffRequest{Name: "Anna", Email: "anna@studio.it", Responsibilities: "Paghe"})
	require.NoError(t, err)

	// same responsibilities keep the stored skills
	updated, err := d.Update(ctx, m.ID, models.StaffRequest{Name: "Anna Bianchi", Email: "anna@studio.it", Responsibilities: "Paghe"})
	require.NoError(t, err)
	assert.Equal(t, "Anna Bianchi", updated.Name)
	assert.Equal(t, "paghe", updated.Skills)
	assert.Equal(t, 1, skills.calls)

	skills.tags = []string{"contenzioso"}
	updated, err = d.Update(ctx, m.ID, models.StaffRequest{Name: "Anna", Email: "anna@studio.it", Responsibilities: "Contenzioso"})
	require.NoError(t, err)
	assert.Equal(t, "contenzioso", updated.Skills)

	_, err = d.Update(ctx, "missing", models.StaffRequest{Name: "A", Email: "a@b.it", Responsibilities: "x"})
	assert.ErrorIs(t, err, database.ErrNotFound)
}
