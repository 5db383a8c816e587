package resources

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// ResourceDTO is the resource payload returned to clients.
type ResourceDTO struct {
	ID          uuid.UUID           `json:"id"`
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Category    *string             `json:"category,omitempty"`
	Description *string             `json:"description,omitempty"`
	Location    *string             `json:"location,omitempty"`
	ImageURL    *string             `json:"image_url,omitempty"`
	State       enums.ResourceState `json:"state"`
	Deleted     bool                `json:"deleted"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewResourceDTO builds a DTO from the persisted model.
func NewResourceDTO(resource *models.Resource) *ResourceDTO {
	if resource == nil {
		return nil
	}
	return &ResourceDTO{
		ID:          resource.ID,
		Code:        resource.Code,
		Name:        resource.Name,
		Category:    resource.Category,
		Description: resource.Description,
		Location:    resource.Location,
		ImageURL:    resource.ImageURL,
		State:       resource.State,
		Deleted:     resource.IsDeleted(),
		DeletedAt:   resource.DeletedAt,
		CreatedAt:   resource.CreatedAt,
		UpdatedAt:   resource.UpdatedAt,
	}
}
