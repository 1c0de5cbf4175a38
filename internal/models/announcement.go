package models

import "time"

// AnnouncementAudience defines who can see an announcement.
type AnnouncementAudience string

const (
	AudienceAll             AnnouncementAudience = "ALL"
	AudienceInstructors     AnnouncementAudience = "INSTRUCTORS"
	AudienceStudents        AnnouncementAudience = "STUDENTS"
	AudienceDepartmentHeads AnnouncementAudience = "DEPARTMENT_HEADS"
)

// AudiencesFor lists the audiences visible to a role. ADMIN sees everything.
func AudiencesFor(role UserRole) []AnnouncementAudience {
	switch role {
	case RoleAdmin:
		return []AnnouncementAudience{AudienceAll, AudienceInstructors, AudienceStudents, AudienceDepartmentHeads}
	case RoleDepartmentHead:
		return []AnnouncementAudience{AudienceAll, AudienceDepartmentHeads}
	case RoleInstructor:
		return []AnnouncementAudience{AudienceAll, AudienceInstructors}
	case RoleStudent:
		return []AnnouncementAudience{AudienceAll, AudienceStudents}
	}
	return []AnnouncementAudience{AudienceAll}
}

// AnnouncementPriority defines ordering for announcements.
type AnnouncementPriority string

const (
	PriorityLow    AnnouncementPriority = "LOW"
	PriorityNormal AnnouncementPriority = "NORMAL"
	PriorityHigh   AnnouncementPriority = "HIGH"
)

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID          string               `db:"id" json:"id"`
	Title       string               `db:"title" json:"title"`
	Content     string               `db:"content" json:"content"`
	Audience    AnnouncementAudience `db:"audience" json:"audience"`
	Priority    AnnouncementPriority `db:"priority" json:"priority"`
	IsPinned    bool                 `db:"is_pinned" json:"is_pinned"`
	PublishedAt time.Time            `db:"published_at" json:"published_at"`
	ExpiresAt   *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy   string               `db:"created_by" json:"created_by"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter allows listing announcements.
type AnnouncementFilter struct {
	Audiences []AnnouncementAudience
	Now       time.Time
	Page      int
	PageSize  int
}

// CreateAnnouncementRequest is the authoring payload.
type CreateAnnouncementRequest struct {
	Title     string               `json:"title" validate:"required,max=200"`
	Content   string               `json:"content" validate:"required"`
	Audience  AnnouncementAudience `json:"audience" validate:"required,oneof=ALL INSTRUCTORS STUDENTS DEPARTMENT_HEADS"`
	Priority  AnnouncementPriority `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH"`
	IsPinned  bool                 `json:"is_pinned"`
	ExpiresAt *time.Time           `json:"expires_at"`
}
