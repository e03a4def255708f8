package services

import "vlab-server/backend/models"

// SubjectInScope reports whether a subject is addressable by a student
// profile: branch and semester must match exactly.
func SubjectInScope(profile *models.UserProfile, subject *models.Subject) bool {
	return profile.Branch == subject.Branch && profile.CurrentSemester == subject.Semester
}

// CanAccessSubject applies the scoping rule with the staff bypass.
// A mismatch is an authorization failure, not a 404: the resource exists
// but is not addressable by this user.
func CanAccessSubject(user *models.User, profile *models.UserProfile, subject *models.Subject) bool {
	if user.IsStaff || user.IsSuperuser {
		return true
	}
	return SubjectInScope(profile, subject)
}
