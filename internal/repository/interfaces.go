package repository

import "github.com/rolesclub/rolesbot/internal/models"

// ClubStore persists one club's catalog and round state. Implementations
// must write atomically: a reader never observes a torn file.
type ClubStore interface {
	LoadCatalog() (*models.Catalog, error)
	SaveCatalog(c *models.Catalog) error
	LoadState() (*models.RoundState, error)
	SaveState(st *models.RoundState) error
}
