package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory(t *testing.T) {
	mentor := User{ID: uuid.New(), Name: "Cy", Email: "cy@campus.edu", Role: RoleMentor}
	dir := NewMemoryDirectory(mentor)

	got, err := dir.GetUser(context.Background(), mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cy", got.Name)

	_, err = dir.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	student := User{ID: uuid.New(), Name: "Ada", Role: RoleStudent}
	dir.Add(student)

	users, err := dir.UsersByID(context.Background(), []uuid.UUID{mentor.ID, student.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, RoleStudent, users[student.ID].Role)
}
