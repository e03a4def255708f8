package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
	"vlab-server/backend/services"
	"vlab-server/backend/utils"
)

type ProfileController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewProfileController(db *gorm.DB, cfg *config.Config) *ProfileController {
	return &ProfileController{DB: db, Cfg: cfg}
}

// GetCompleteProfile returns the (lazily created) profile plus which
// required fields are still missing.
func (pc *ProfileController) GetCompleteProfile(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	profile, err := services.GetOrCreateProfile(pc.DB, pc.Cfg, userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	missing := []string{}
	if profile.FullName == "" {
		missing = append(missing, "full_name")
	}
	if profile.RollNo == "" {
		missing = append(missing, "roll_no")
	}
	if profile.Branch == "" {
		missing = append(missing, "branch")
	}
	if profile.CurrentSemester <= 0 {
		missing = append(missing, "current_semester")
	}
	if profile.ContactNumber == "" {
		missing = append(missing, "contact_number")
	}

	return c.JSON(fiber.Map{
		"profile":        profileView(profile),
		"complete":       profile.IsProfileComplete,
		"missing_fields": missing,
	})
}

// CompleteProfile accepts the full academic field set.
func (pc *ProfileController) CompleteProfile(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var input struct {
		FullName        string `json:"full_name"`
		RollNo          string `json:"roll_no"`
		CollegeID       string `json:"college_id"`
		Branch          string `json:"branch"`
		CurrentSemester int    `json:"current_semester"`
		Division        string `json:"division"`
		ContactNumber   string `json:"contact_number"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	profile, err := services.GetOrCreateProfile(pc.DB, pc.Cfg, userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	if input.FullName != "" {
		profile.FullName = input.FullName
	}
	if input.RollNo != "" {
		profile.RollNo = input.RollNo
	}
	if input.CollegeID != "" {
		profile.CollegeID = input.CollegeID
	}
	if input.Branch != "" {
		profile.Branch = input.Branch
	}
	if input.CurrentSemester > 0 {
		profile.CurrentSemester = input.CurrentSemester
	}
	if input.Division != "" {
		profile.Division = input.Division
	}
	if input.ContactNumber != "" {
		profile.ContactNumber = input.ContactNumber
	}

	if err := services.SaveProfile(pc.DB, profile); err != nil {
		return utils.InternalServerError(c, "Could not save profile")
	}

	if !profile.IsProfileComplete {
		return utils.Redirect(c, fiber.StatusOK, "/profile/complete",
			"Some required fields are still missing.", "warning")
	}
	return utils.Redirect(c, fiber.StatusOK, "/dashboard",
		"Profile completed. Welcome to the lab!", "success")
}

// EditProfile updates the restricted field set: name, contact, picture.
// Academic identity (branch, semester, roll number) is fixed after
// completion and only changeable by an admin.
func (pc *ProfileController) EditProfile(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var input struct {
		FullName          string `json:"full_name"`
		ContactNumber     string `json:"contact_number"`
		ProfilePictureURL string `json:"profile_picture_url"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	profile, err := services.GetOrCreateProfile(pc.DB, pc.Cfg, userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	if input.FullName != "" {
		profile.FullName = input.FullName
	}
	if input.ContactNumber != "" {
		profile.ContactNumber = input.ContactNumber
	}
	if input.ProfilePictureURL != "" {
		profile.ProfilePictureURL = input.ProfilePictureURL
	}

	if err := services.SaveProfile(pc.DB, profile); err != nil {
		return utils.InternalServerError(c, "Could not save profile")
	}

	return utils.Success(c, fiber.StatusOK, profileView(profile))
}

func (pc *ProfileController) GetProfile(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	profile, err := services.GetOrCreateProfile(pc.DB, pc.Cfg, userID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}
	return utils.Success(c, fiber.StatusOK, profileView(profile))
}

func profileView(p *models.UserProfile) fiber.Map {
	return fiber.Map{
		"full_name":           p.FullName,
		"roll_no":             p.RollNo,
		"college_id":          p.CollegeID,
		"branch":              p.Branch,
		"current_semester":    p.CurrentSemester,
		"division":            p.Division,
		"contact_number":      p.ContactNumber,
		"profile_picture_url": p.ProfilePictureURL,
		"role":                p.Role,
		"is_complete":         p.IsProfileComplete,
	}
}
