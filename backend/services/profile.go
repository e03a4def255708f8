package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
)

// ComputeCompleteness is the single rule for the profile gate. A profile
// unlocks lab content only when all required identity fields are filled.
func ComputeCompleteness(p *models.UserProfile) bool {
	return p.FullName != "" &&
		p.RollNo != "" &&
		p.Branch != "" &&
		p.CurrentSemester > 0 &&
		p.ContactNumber != ""
}

// GetOrCreateProfile is the one place a default profile comes from. Every
// caller that may race on first access (login, gate, profile views) goes
// through here so defaults never diverge.
func GetOrCreateProfile(db *gorm.DB, cfg *config.Config, userID uint) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := db.Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = models.UserProfile{
		UserID:          userID,
		Branch:          cfg.DefaultBranch,
		CurrentSemester: cfg.DefaultSemester,
		Role:            models.RoleStudent,
	}
	profile.IsProfileComplete = ComputeCompleteness(&profile)
	if err := db.Create(&profile).Error; err != nil {
		// Lost a create race: someone else made it first.
		var existing models.UserProfile
		if ferr := db.Where("user_id = ?", userID).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &profile, nil
}

// SaveProfile persists a profile, recomputing the completeness flag and
// syncing the owning user's staff flag from the profile role. Both
// derivations run synchronously on every write; nothing is cached.
func SaveProfile(db *gorm.DB, profile *models.UserProfile) error {
	profile.IsProfileComplete = ComputeCompleteness(profile)

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(profile).Error; err != nil {
			return err
		}
		return syncStaffFlag(tx, profile)
	})
}

func syncStaffFlag(tx *gorm.DB, profile *models.UserProfile) error {
	var user models.User
	if err := tx.First(&user, profile.UserID).Error; err != nil {
		return err
	}

	if profile.Role == models.RoleAdmin && !user.IsStaff {
		return tx.Model(&user).Update("is_staff", true).Error
	}
	if profile.Role != models.RoleAdmin && user.IsStaff && !user.IsSuperuser {
		return tx.Model(&user).Update("is_staff", false).Error
	}
	return nil
}

// HydrateFromSocial fills blank profile fields from identity-provider
// data. Existing values are never overwritten.
func HydrateFromSocial(db *gorm.DB, cfg *config.Config, userID uint, fullName, email string) (*models.UserProfile, error) {
	profile, err := GetOrCreateProfile(db, cfg, userID)
	if err != nil {
		return nil, err
	}

	if profile.FullName == "" && fullName != "" {
		profile.FullName = fullName
	}
	if profile.CollegeID == "" && email != "" {
		local := strings.SplitN(email, "@", 2)[0]
		if len(local) > 10 {
			local = local[:10]
		}
		profile.CollegeID = fmt.Sprintf("TEMP_%s", local)
	}
	if profile.Branch == "" {
		profile.Branch = cfg.DefaultBranch
	}
	if profile.CurrentSemester == 0 {
		profile.CurrentSemester = cfg.DefaultSemester
	}
	if profile.ContactNumber == "" {
		profile.ContactNumber = "0000000000"
	}

	if err := SaveProfile(db, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
