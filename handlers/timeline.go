// handlers/timeline.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetTeamTimeline returns the caller's team feed, newest first.
func GetTeamTimeline(c *fiber.Ctx) error {
	user, err := teamService.GetUser(currentUserID(c))
	if err != nil {
		return fail(c, err)
	}

	if user.TeamID == nil {
		return c.JSON(fiber.Map{"success": true, "timeline": []any{}})
	}

	limit := c.QueryInt("limit", 20)
	posts, err := timelineService.TeamTimeline(*user.TeamID, limit)
	if err != nil {
		return fail(c, err)
	}

	liked, err := timelineService.LikedPostIDs(user.ID, *user.TeamID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"timeline":       posts,
		"liked_post_ids": liked,
	})
}

// ToggleLike likes or unlikes a teammate's post.
func ToggleLike(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid post id"})
	}

	liked, err := timelineService.ToggleLike(currentUserID(c), uint(id))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "liked": liked})
}
