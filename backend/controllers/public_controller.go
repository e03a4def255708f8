package controllers

import "github.com/gofiber/fiber/v2"

// Public informational pages, exempt from the profile gate.

func Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":        "Virtual Lab Platform",
		"description": "Browse subjects, run experiments and take tests.",
	})
}

func About(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"about": "A virtual laboratory platform for engineering students.",
	})
}

func Contact(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"email": "support@vlab.example.com",
	})
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
