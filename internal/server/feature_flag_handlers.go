package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns configured feature flags and their state for the caller.
// Anonymous callers are evaluated as user 0.
// @Summary Feature flags
// @Tags catalog
// @Produce json
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}

// GetCatalog handles GET /api/catalog
// @Summary Option catalog
// @Description Model, purpose and sort options offered by the prompt forms and feed.
// @Tags catalog
// @Produce json
// @Success 200 {object} catalog.Catalog
// @Router /catalog [get]
func (s *Server) GetCatalog(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.JSON(s.catalog)
}
