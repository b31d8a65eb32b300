package work

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskAccessibleBy(t *testing.T) {
	task := &Task{OwnerRoleID: "owner", AssignedRolesIDs: []string{"a", "b"}}

	assert.True(t, task.AccessibleBy("owner"))
	assert.True(t, task.AccessibleBy("b"))
	assert.False(t, task.AccessibleBy("c"))
	assert.False(t, task.AccessibleBy(""))
}

func TestObjectiveAccessibleBy(t *testing.T) {
	o := &Objective{OwnerRoleID: "owner", AssignedRoleIDs: []string{"a"}}

	assert.True(t, o.AccessibleBy("owner"))
	assert.True(t, o.AccessibleBy("a"))
	assert.False(t, o.AccessibleBy("b"))
}

func TestTaskFiles(t *testing.T) {
	task := &Task{TaskResources: []string{"brief.pdf"}, TaskOutputs: []string{"report.docx"}}

	assert.Equal(t, []string{"brief.pdf"}, task.Files(FileResource))
	assert.Equal(t, []string{"report.docx"}, task.Files(FileOutput))
	assert.Equal(t, "outputs", FileOutput.column())
	assert.Equal(t, "resources", FileResource.column())
}

func TestEnumsValid(t *testing.T) {
	for _, s := range []Status{StatusToDo, StatusInProgress, StatusDone, StatusCanceled, StatusDrafted, StatusOnHold} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("ARCHIVED").Valid())
	assert.False(t, Status("").Valid())

	for _, p := range []Priority{PriorityVeryHigh, PriorityHigh, PriorityMedium, PriorityLow, PriorityVeryLow} {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Priority("URGENT").Valid())
}

func TestSetBuilder(t *testing.T) {
	var b setBuilder
	assert.True(t, b.empty())

	b.add("title", "New")
	b.add("status", StatusDone)
	query, args := b.build("tasks", "id", "task-1", "owner_role_id", "role-1")

	assert.Equal(t, "UPDATE tasks SET title = $1, status = $2, updated_at = now() WHERE id = $3 AND owner_role_id = $4", query)
	assert.Equal(t, []any{"New", StatusDone, "task-1", "role-1"}, args)
}
