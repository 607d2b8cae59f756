package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLookups(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	d.AddClass("class-a", "math")
	d.Enroll("student-1", "class-a")

	ok, err := d.ClassExists(ctx, "class-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.ClassHasSubject(ctx, "class-a", "math")
	assert.True(t, ok)
	ok, _ = d.ClassHasSubject(ctx, "class-a", "history")
	assert.False(t, ok)

	classID, err := d.StudentClass(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, "class-a", classID)

	_, err = d.StudentClass(ctx, "nobody")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}
